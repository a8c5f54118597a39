package engine

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Fixed response messages.
const (
	MsgOK                 = "OK."
	MsgBadRequest         = "Bad Request."
	MsgUnauthorized       = "Unauthorized."
	MsgInvalidCredentials = "Invalid email or password."
	MsgForbidden          = "Forbidden."
	MsgEmailNotVerified   = "Your email address is not verified."
	MsgSelfDelete         = "An user cannot delete itself."
	MsgNotFound           = "Not found."
	MsgModelNotFound      = "Model class not found."
	MsgObjectNotFound     = "Model object not found."
	MsgMethodNotAllowed   = "Method not allowed."
	MsgTooManyRequests    = "Too Many Attempts."
	MsgInternal           = "Internal server error."
)

// AppError is a request-terminal error rendered as {"message": ..., "errors": {...}}.
type AppError struct {
	Code    string              `json:"-"`
	Status  int                 `json:"-"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError() *AppError {
	return NewAppError("NOT_FOUND", http.StatusNotFound, MsgObjectNotFound)
}

func UnknownModelError() *AppError {
	return NewAppError("UNKNOWN_MODEL", http.StatusNotFound, MsgModelNotFound)
}

// ValidationError carries per-field messages. The top-level message is the
// first field message, with a count of the remaining ones.
func ValidationError(fields map[string][]string) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  http.StatusUnprocessableEntity,
		Message: summarize(fields),
		Errors:  fields,
	}
}

func ColumnError(invalid []string) *AppError {
	return queryError("INVALID_COLUMNS", "columns", "Invalid columns: "+strings.Join(invalid, ", "))
}

func RelationError(invalid []string) *AppError {
	return queryError("INVALID_RELATIONS", "with", "Invalid associations: "+strings.Join(invalid, ", "))
}

func FilterError(msg string) *AppError {
	return queryError("INVALID_FILTER", "filter", msg)
}

func TypeError(column, raw string) *AppError {
	return queryError("INVALID_VALUE", "filter", fmt.Sprintf("Invalid value for %s: %s", column, raw))
}

func UnauthorizedError() *AppError {
	return NewAppError("UNAUTHORIZED", http.StatusUnauthorized, MsgUnauthorized)
}

func InvalidCredentialsError() *AppError {
	return NewAppError("INVALID_CREDENTIALS", http.StatusUnauthorized, MsgInvalidCredentials)
}

func ForbiddenError(msg string) *AppError {
	if msg == "" {
		msg = MsgForbidden
	}
	return NewAppError("FORBIDDEN", http.StatusForbidden, msg)
}

func MethodNotAllowedError() *AppError {
	return NewAppError("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

func TooManyRequestsError() *AppError {
	return NewAppError("TOO_MANY_REQUESTS", http.StatusTooManyRequests, MsgTooManyRequests)
}

func BadRequestError() *AppError {
	return NewAppError("BAD_REQUEST", http.StatusBadRequest, MsgBadRequest)
}

func queryError(code, param, msg string) *AppError {
	return &AppError{
		Code:    code,
		Status:  http.StatusUnprocessableEntity,
		Message: msg,
		Errors:  map[string][]string{param: {msg}},
	}
}

// mergeQueryErrors folds several 422 query errors into one response naming
// every offending token. Nil entries are skipped.
func mergeQueryErrors(errs ...*AppError) *AppError {
	var found []*AppError
	for _, e := range errs {
		if e != nil {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return nil
	case 1:
		return found[0]
	}
	merged := &AppError{Code: "INVALID_QUERY", Status: http.StatusUnprocessableEntity, Errors: map[string][]string{}}
	msgs := make([]string, 0, len(found))
	for _, e := range found {
		msgs = append(msgs, e.Message)
		for k, v := range e.Errors {
			merged.Errors[k] = append(merged.Errors[k], v...)
		}
	}
	merged.Message = strings.Join(msgs, "; ")
	return merged
}

func summarize(fields map[string][]string) string {
	var first string
	total := 0
	for _, key := range sortedKeys(fields) {
		for _, msg := range fields[key] {
			if first == "" {
				first = msg
			}
			total++
		}
	}
	switch {
	case total == 0:
		return "The given data was invalid."
	case total == 1:
		return first
	case total == 2:
		return fmt.Sprintf("%s (and 1 more error)", first)
	default:
		return fmt.Sprintf("%s (and %d more errors)", first, total-1)
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrorHandler renders AppErrors with their status, fiber errors with a
// fixed message, and anything else as a logged 500.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return c.Status(appErr.Status).JSON(appErr)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			msg := fe.Message
			switch fe.Code {
			case http.StatusNotFound:
				msg = MsgNotFound
			case http.StatusMethodNotAllowed:
				msg = MsgMethodNotAllowed
			case http.StatusTooManyRequests:
				msg = MsgTooManyRequests
			case http.StatusBadRequest, http.StatusUnprocessableEntity:
				msg = MsgBadRequest
			}
			if fe.Code >= http.StatusInternalServerError {
				logger.Error("request failed", zap.Error(err),
					zap.String("method", c.Method()), zap.String("path", c.Path()))
				msg = MsgInternal
			}
			return c.Status(fe.Code).JSON(&AppError{Message: msg})
		}

		logger.Error("unhandled error", zap.Error(err),
			zap.String("method", c.Method()), zap.String("path", c.Path()))
		return c.Status(http.StatusInternalServerError).JSON(&AppError{Message: MsgInternal})
	}
}
