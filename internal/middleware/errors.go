package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/agura-market/agura_market/internal/apperr"
)

// ErrorHandler renders every error as {"status": message, "retryable": bool}.
// Provider payloads and internal causes never reach the body.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := errorStatus(err)
		message := apperr.Message(err)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			message = fe.Message
		}
		if status >= fiber.StatusInternalServerError && fe == nil && logger != nil {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}

		return c.Status(status).JSON(fiber.Map{
			"status":    message,
			"retryable": apperr.Retryable(err),
		})
	}
}

func errorStatus(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.Status(err)
}
