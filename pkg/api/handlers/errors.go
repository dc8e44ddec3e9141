package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/bitsgate/internal/logger"
	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

// codeInternal labels errors that carry no bitsgate error code.
const codeInternal = "Internal"

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}

	switch bitserrors.CodeOf(err) {
	case bitserrors.ErrInvalidArchive, bitserrors.ErrPackageInvalid, bitserrors.ErrInvalidArgument:
		return http.StatusBadRequest
	case bitserrors.ErrNotFound:
		return http.StatusNotFound
	case bitserrors.ErrSignatureInvalid:
		return http.StatusForbidden
	case bitserrors.ErrNoSpace:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorBody. Tool diagnostics are only
// exposed outside production.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, production bool, err error) {
	status := StatusFor(err)

	body := ErrorBody{
		Code:        codeInternal,
		Description: err.Error(),
		RequestID:   middleware.GetReqID(r.Context()),
	}

	var coded *bitserrors.Error
	if errors.As(err, &coded) {
		body.Code = coded.Code.String()
		body.Description = coded.Message
		if coded.Code == bitserrors.ErrNotFound {
			body.Description = coded.Message + ": " + coded.Path
		}
	}
	if status == http.StatusRequestEntityTooLarge {
		body.Code = "RequestTooLarge"
		body.Description = "request body too large"
	}
	if status == http.StatusInternalServerError && production && coded == nil {
		body.Description = "internal server error"
	}
	if !production {
		body.Diagnostic = bitserrors.DiagnosticOf(err)
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "request failed",
		logger.KeyStatus, status,
		logger.KeyErrorCode, body.Code,
		logger.Err(err),
	)

	writeJSON(w, status, body)
}
