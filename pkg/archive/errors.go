package archive

import (
	"errors"
	"fmt"
	"strings"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

var (
	// ErrEscapesRoot is returned when a name or link target resolves outside
	// the destination root.
	ErrEscapesRoot = errors.New("path escapes destination root")

	// ErrTooManyLinks is returned when resolving a path follows more symlinks
	// than maxSymlinkHops.
	ErrTooManyLinks = errors.New("too many levels of symbolic links")

	// ErrNothingToDelete is returned by Delete when none of the names exist.
	ErrNothingToDelete = errors.New("nothing to delete")
)

// CommandError is returned by ExecCodec when an external tool fails.
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Output))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// diagnostic extracts the text shown to operators for a codec failure.
func diagnostic(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return strings.TrimSpace(ce.Output)
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func invalidArchive(path, msg string, cause error) error {
	return bitserrors.NewInvalidArchiveError(path, msg, cause).WithDiagnostic(diagnostic(cause))
}

func packageInvalid(path, msg string, cause error) error {
	return bitserrors.NewPackageInvalidError(path, msg, cause).WithDiagnostic(diagnostic(cause))
}
