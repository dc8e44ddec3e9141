package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "InvalidArchive", ErrInvalidArchive.String())
	assert.Equal(t, "NoSpace", ErrNoSpace.String())
	assert.Equal(t, "SignatureInvalid", ErrSignatureInvalid.String())
	assert.Equal(t, "Unknown(99)", ErrorCode(99).String())
}

func TestErrorMessage(t *testing.T) {
	err := NewInvalidArchiveError("/tmp/a.zip", "archive is empty", nil)
	assert.Equal(t, "InvalidArchive: archive is empty (path: /tmp/a.zip)", err.Error())

	cause := errors.New("boom")
	err = NewStorageError("", "write failed", cause)
	assert.Equal(t, "StorageFailure: write failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestHelpersSeeThroughWrapping(t *testing.T) {
	base := NewNotFoundError("abc")
	wrapped := fmt.Errorf("lookup: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsInvalidArchive(wrapped))
	assert.Equal(t, ErrNotFound, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(0), CodeOf(errors.New("plain")))
}

func TestNoSpaceIsStorageFailure(t *testing.T) {
	err := NewNoSpaceError("/data", nil)
	assert.True(t, IsNoSpace(err))
	assert.True(t, IsStorageFailure(err))
	assert.False(t, IsNoSpace(NewStorageError("", "x", nil)))
}

func TestWithDiagnostic(t *testing.T) {
	orig := NewInvalidArchiveError("a.zip", "unzip failed", nil)
	withDiag := orig.WithDiagnostic("error: invalid zip file")

	require.NotSame(t, orig, withDiag)
	assert.Empty(t, orig.Diagnostic)
	assert.Equal(t, "error: invalid zip file", DiagnosticOf(fmt.Errorf("x: %w", withDiag)))
}
