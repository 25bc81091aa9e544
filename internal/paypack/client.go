package paypack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/agura-market/agura_market/internal/apperr"
)

const (
	DefaultBaseURL = "https://payments.paypack.rw/api"
	defaultTimeout = 30 * time.Second

	// DefaultLimit mirrors the page size the marketplace has always requested.
	DefaultLimit = 100
	maxLimit     = 100

	maxBodyBytes = 1 << 20
	tokenSkew    = 30 * time.Second
)

const (
	opAuthorize    = "authorize"
	opCashIn       = "cashin"
	opCashOut      = "cashout"
	opTransactions = "transactions"
	opEvents       = "events"
	opMe           = "me"
)

// Environment selects sandbox or real-money processing on the provider side.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentDevelopment Environment = "development"
)

// Valid reports whether e is an environment the provider understands.
func (e Environment) Valid() bool {
	return e == EnvironmentProduction || e == EnvironmentDevelopment
}

// Config holds the merchant credential pair and endpoint. It is fixed at startup.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// CashInRequest pulls Amount from the payer's mobile-money account.
type CashInRequest struct {
	Number      string
	Amount      int64
	Environment Environment
}

// CashOutRequest pushes Amount from the merchant account to a payee.
type CashOutRequest struct {
	Number      string
	Amount      int64
	Environment Environment
}

// Page selects a window of a provider listing.
type Page struct {
	Offset int
	Limit  int
}

// Response carries the provider payload verbatim.
type Response struct {
	Data json.RawMessage
}

// Transaction is the subset of a cash-in/cash-out payload the service reads.
type Transaction struct {
	Ref    string  `json:"ref"`
	Status string  `json:"status"`
	Kind   string  `json:"kind"`
	Amount float64 `json:"amount"`
}

// Transaction decodes the provider reference and status from a cash-in or
// cash-out payload. Missing fields are left empty.
func (r Response) Transaction() Transaction {
	var tx Transaction
	_ = json.Unmarshal(r.Data, &tx)
	return tx
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for call outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client talks to the Paypack merchant API. Each operation is a single
// outbound call with no retries; payments are not idempotent on the provider.
type Client struct {
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// New validates cfg and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("paypack client id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CashIn asks the provider to collect req.Amount from req.Number.
func (c *Client) CashIn(ctx context.Context, req CashInRequest) (Response, error) {
	if err := validateTransfer(req.Number, req.Amount, req.Environment); err != nil {
		return Response{}, err
	}
	return c.transfer(ctx, opCashIn, "/transactions/cashin", req.Number, req.Amount, req.Environment)
}

// CashOut asks the provider to send req.Amount to req.Number.
func (c *Client) CashOut(ctx context.Context, req CashOutRequest) (Response, error) {
	if err := validateTransfer(req.Number, req.Amount, req.Environment); err != nil {
		return Response{}, err
	}
	return c.transfer(ctx, opCashOut, "/transactions/cashout", req.Number, req.Amount, req.Environment)
}

// Transactions lists merchant transactions in provider order.
func (c *Client) Transactions(ctx context.Context, page Page) (Response, error) {
	return c.call(ctx, opTransactions, http.MethodGet, "/transactions/list", page.query(), nil, nil)
}

// Events lists merchant transaction events in provider order.
func (c *Client) Events(ctx context.Context, page Page) (Response, error) {
	return c.call(ctx, opEvents, http.MethodGet, "/events/transactions", page.query(), nil, nil)
}

// Me returns the merchant account profile.
func (c *Client) Me(ctx context.Context) (Response, error) {
	return c.call(ctx, opMe, http.MethodGet, "/merchants/me", nil, nil, nil)
}

func (c *Client) transfer(ctx context.Context, op, path, number string, amount int64, env Environment) (Response, error) {
	body := map[string]any{"amount": amount, "number": number}
	headers := map[string]string{"X-Webhook-Mode": string(env)}
	return c.call(ctx, op, http.MethodPost, path, nil, body, headers)
}

func validateTransfer(number string, amount int64, env Environment) error {
	if strings.TrimSpace(number) == "" {
		return fmt.Errorf("phone number is required: %w", apperr.ErrInvalidInput)
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %w", apperr.ErrInvalidInput)
	}
	if !env.Valid() {
		return fmt.Errorf("unknown environment %q: %w", env, apperr.ErrInvalidInput)
	}
	return nil
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

func (p Page) query() url.Values {
	p = p.Normalize()
	q := url.Values{}
	q.Set("offset", strconv.Itoa(p.Offset))
	q.Set("limit", strconv.Itoa(p.Limit))
	return q
}

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, in any, headers map[string]string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	started := time.Now()
	data, err := c.exchange(ctx, op, method, path, query, in, headers)
	c.metrics.observe(op, started, err)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.Message != "" {
			c.logger.Warn("paypack call failed", slog.String("op", op), slog.Int("status", perr.StatusCode), slog.String("provider_message", perr.Message), slog.Any("error", err))
		} else {
			c.logger.Warn("paypack call failed", slog.String("op", op), slog.Any("error", err))
		}
		return Response{}, err
	}
	c.logger.Debug("paypack call completed", slog.String("op", op), slog.Duration("duration", time.Since(started)))
	return Response{Data: data}, nil
}

func (c *Client) exchange(ctx context.Context, op, method, path string, query url.Values, in any, headers map[string]string) (json.RawMessage, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	link := c.cfg.BaseURL + path
	if len(query) > 0 {
		link += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "Failed marshal")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, link, body)
	if err != nil {
		return nil, errors.Wrap(err, "Failed new request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	status, payload, err := c.do(req)
	if err != nil {
		return nil, unavailable(op, err)
	}
	if status == http.StatusUnauthorized {
		c.dropToken(token)
	}
	if status < 200 || status > 299 {
		return nil, classify(op, status, providerMessage(payload))
	}
	if !json.Valid(payload) {
		// The provider already accepted the request; reporting a failure here
		// would invite a second real-money call. Hand the body back as a string.
		c.logger.Warn("paypack success body is not json", slog.String("op", op), slog.Int("status", status))
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return nil, errors.Wrap(err, "Failed marshal")
		}
		return quoted, nil
	}
	return payload, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(err, "Failed do request")
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, errors.Wrap(err, "Failed read all body")
	}
	return resp.StatusCode, b, nil
}

type authorizeResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Expires int64  `json:"expires"`
}

// accessToken returns the cached provider token, authorizing with the
// credential pair when none is cached or it is about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Add(tokenSkew).Before(c.tokenExp) {
		return c.token, nil
	}

	b, err := json.Marshal(map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
	})
	if err != nil {
		return "", unavailable(opAuthorize, errors.Wrap(err, "Failed marshal"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth/agents/authorize", bytes.NewReader(b))
	if err != nil {
		return "", unavailable(opAuthorize, errors.Wrap(err, "Failed new request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, payload, err := c.do(req)
	if err != nil {
		return "", unavailable(opAuthorize, err)
	}
	if status < 200 || status > 299 {
		// A declined credential pair is a deployment fault, not a payment decline.
		return "", &Error{Op: opAuthorize, Kind: apperr.ErrGatewayUnavailable, StatusCode: status, Message: providerMessage(payload)}
	}
	var out authorizeResponse
	if err := json.Unmarshal(payload, &out); err != nil || out.Access == "" {
		return "", unavailable(opAuthorize, errors.New("Failed unmarshal authorize response"))
	}

	c.token = out.Access
	c.tokenExp = expiryFrom(now, out.Expires)
	return c.token, nil
}

// expiryFrom accepts either a unix timestamp or a lifetime in seconds.
func expiryFrom(now time.Time, expires int64) time.Time {
	switch {
	case expires <= 0:
		return now.Add(tokenSkew * 2)
	case expires > now.Unix():
		return time.Unix(expires, 0)
	default:
		return now.Add(time.Duration(expires) * time.Second)
	}
}

func (c *Client) dropToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
		c.tokenExp = time.Time{}
	}
}

func providerMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if len(payload) > 200 {
		payload = payload[:200]
	}
	return strings.TrimSpace(string(payload))
}
