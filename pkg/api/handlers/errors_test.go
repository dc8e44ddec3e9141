package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{bitserrors.NewInvalidArchiveError("a.zip", "not a zip", nil), http.StatusBadRequest},
		{bitserrors.NewPackageInvalidError("a.zip", "append failed", nil), http.StatusBadRequest},
		{bitserrors.NewNotFoundError("abc"), http.StatusNotFound},
		{bitserrors.NewStorageError("/x", "write", nil), http.StatusInternalServerError},
		{bitserrors.NewNoSpaceError("/x", nil), http.StatusInsufficientStorage},
		{bitserrors.NewInvalidArgumentError("bad key"), http.StatusBadRequest},
		{bitserrors.NewSignatureInvalidError("signed URL expired"), http.StatusForbidden},
		{fmt.Errorf("store: %w", bitserrors.NewNotFoundError("abc")), http.StatusNotFound},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError(t *testing.T) {
	diag := bitserrors.NewInvalidArchiveError("/tmp/x.zip", "archive could not be extracted", nil).
		WithDiagnostic("End-of-central-directory signature not found")

	render := func(production bool, err error) ErrorBody {
		req := httptest.NewRequest(http.MethodPut, "/packages/abc", nil)
		w := httptest.NewRecorder()
		writeError(w, req, slog.New(slog.DiscardHandler), production, err)

		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var body ErrorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	t.Run("HidesDiagnosticInProduction", func(t *testing.T) {
		body := render(true, diag)
		assert.Equal(t, "InvalidArchive", body.Code)
		assert.Equal(t, "archive could not be extracted", body.Description)
		assert.Empty(t, body.Diagnostic)
	})

	t.Run("ShowsDiagnosticOutsideProduction", func(t *testing.T) {
		body := render(false, diag)
		assert.Equal(t, "End-of-central-directory signature not found", body.Diagnostic)
	})

	t.Run("NotFoundNamesKey", func(t *testing.T) {
		body := render(true, bitserrors.NewNotFoundError("abc"))
		assert.Equal(t, "blob not found: abc", body.Description)
	})

	t.Run("UncodedErrorsAreMasked", func(t *testing.T) {
		body := render(true, errors.New("secret detail"))
		assert.Equal(t, codeInternal, body.Code)
		assert.Equal(t, "internal server error", body.Description)

		body = render(false, errors.New("secret detail"))
		assert.Equal(t, "secret detail", body.Description)
	})
}
