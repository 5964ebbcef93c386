package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err in the error envelope. Messages and details are only
// exposed for codes that allow it; everything else gets the public message.
func writeError(ctx context.Context, log *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())

	body := apiError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if meta.DetailsAllowed {
		if m := typed.Message(); m != "" {
			body.Message = m
		}
		body.Details = typed.Details()
	}

	if log != nil {
		ctx = log.WithField(ctx, "error_code", body.Code)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			log.Error(ctx, "request failed", err)
		} else {
			log.Warn(ctx, "request rejected", err)
		}
	}
	writeJSON(w, meta.HTTPStatus, errorEnvelope{Error: body})
}
