package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/orgstatus/internal/pkg/ctxlog"
)

// ErrorMapping maps a domain error to a status code. An empty Message
// exposes err.Error().
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

func (m ErrorMapping) message(err error) string {
	if m.Message != "" {
		return m.Message
	}
	return err.Error()
}

// HandleError writes the first mapping that matches err. A request whose
// deadline passed gets 503; anything else is logged and hidden behind 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			Error(w, m.Status, m.message(err))
			return
		}
	}

	logger := ctxlog.FromContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("request timed out", "error", err)
		Error(w, http.StatusServiceUnavailable, "request timed out")
		return
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
