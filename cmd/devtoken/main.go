// Command devtoken mints and inspects HS256 access tokens for local testing.
// Production tokens come from the user service; both share JWT_SECRET.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/agura-market/agura_market/internal/auth"
)

const secretEnvVar = "JWT_SECRET"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "devtoken",
		Short:         "Issue and verify marketplace access tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("secret", "", "signing secret (defaults to $"+secretEnvVar+")")

	root.AddCommand(issueCmd())
	root.AddCommand(verifyCmd())
	return root
}

func issueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Print a signed token for a subject and role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive")
			}

			secret, err := secretFrom(cmd)
			if err != nil {
				return err
			}
			iss, err := auth.NewIssuer(secret)
			if err != nil {
				return err
			}
			token, exp, err := iss.Issue(auth.Identity{Subject: sub, Role: auth.Role(role)}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().String("sub", "", "subject (user id)")
	cmd.Flags().String("role", string(auth.RoleUser), "role: user or admin")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [token]",
		Short: "Check a token and print the identity it carries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretFrom(cmd)
			if err != nil {
				return err
			}
			v, err := auth.NewVerifier(secret, nil)
			if err != nil {
				return err
			}
			id, err := v.Verify(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sub=%s role=%s\n", id.Subject, id.Role)
			return nil
		},
	}
}

func secretFrom(cmd *cobra.Command) (string, error) {
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv(secretEnvVar)
	}
	if secret == "" {
		return "", fmt.Errorf("%s must be set or --secret given", secretEnvVar)
	}
	return secret, nil
}
