package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/pkg/problem"
)

// detail strips the sentinel prefix so clients see only the specific message.
func detail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, core.ErrNotFound):
		log.WarnContext(ctx, "resource not found", "err", err)
		problem.WriteFor(w, r, http.StatusNotFound, "Not Found", detail(err))

	case errors.Is(err, core.ErrValidation):
		log.WarnContext(ctx, "validation failed", "err", err)
		problem.WriteFor(w, r, http.StatusBadRequest, "Validation Error", detail(err))

	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrInvalidState):
		log.WarnContext(ctx, "resource conflict", "err", err)
		problem.WriteFor(w, r, http.StatusConflict, "Conflict", detail(err))

	case errors.Is(err, core.ErrUnauthorized):
		log.WarnContext(ctx, "unauthorized request", "err", err)
		problem.WriteFor(w, r, http.StatusUnauthorized, "Unauthorized", detail(err))

	case errors.Is(err, core.ErrForbidden):
		log.WarnContext(ctx, "forbidden operation", "err", err)
		problem.WriteFor(w, r, http.StatusForbidden, "Forbidden", detail(err))

	case errors.Is(err, core.ErrTooManyRequests):
		log.WarnContext(ctx, "throttled", "err", err)
		problem.WriteFor(w, r, http.StatusTooManyRequests, "Too Many Requests", detail(err))

	case errors.Is(err, core.ErrUnavailable):
		log.ErrorContext(ctx, "dependency unavailable", "err", err)
		problem.WriteFor(w, r, http.StatusServiceUnavailable, "Service Unavailable", detail(err))

	case errors.Is(err, context.DeadlineExceeded):
		log.ErrorContext(ctx, "operation timeout", "err", err)
		problem.WriteFor(w, r, http.StatusGatewayTimeout, "Timeout", "Operation took too long.")

	default:
		log.ErrorContext(ctx, "internal server error", "err", err)
		problem.WriteFor(w, r, http.StatusInternalServerError, "Internal Server Error", "Something went wrong.")
	}
}
