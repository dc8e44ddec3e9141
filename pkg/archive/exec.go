package archive

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
)

// ExecCodec drives the system zip and unzip binaries.
//
// Arguments are passed without a shell, and Delete uses zip's -nw so entry
// names are never treated as wildcards. Listing uses the in-process reader.
type ExecCodec struct {
	zipBin   string
	unzipBin string
	lister   *NativeCodec
}

// ExecOption configures an ExecCodec.
type ExecOption func(*ExecCodec)

// WithZipBinary sets the zip executable, "zip" by default.
func WithZipBinary(path string) ExecOption {
	return func(c *ExecCodec) { c.zipBin = path }
}

// WithUnzipBinary sets the unzip executable, "unzip" by default.
func WithUnzipBinary(path string) ExecOption {
	return func(c *ExecCodec) { c.unzipBin = path }
}

// NewExecCodec returns an ExecCodec.
func NewExecCodec(opts ...ExecOption) *ExecCodec {
	c := &ExecCodec{
		zipBin:   "zip",
		unzipBin: "unzip",
		lister:   NewNativeCodec(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Codec = (*ExecCodec)(nil)

func (c *ExecCodec) List(ctx context.Context, archivePath string) ([]Entry, error) {
	return c.lister.List(ctx, archivePath)
}

// Unpack runs `unzip -qq -n <archive> -d <destRoot>`.
func (c *ExecCodec) Unpack(ctx context.Context, archivePath, destRoot string) error {
	return c.run(ctx, "", c.unzipBin, "-qq", "-n", archivePath, "-d", destRoot)
}

// Append runs `zip -q -r --symlinks <archive> .` from inside sourceDir.
func (c *ExecCodec) Append(ctx context.Context, archivePath, sourceDir string) error {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return err
	}
	return c.run(ctx, sourceDir, c.zipBin, "-q", "-r", "--symlinks", abs, ".")
}

// Delete runs `zip -q -d -nw <archive> <names...>`.
func (c *ExecCodec) Delete(ctx context.Context, archivePath string, names []string) error {
	args := append([]string{"-q", "-d", "-nw", archivePath}, names...)
	return c.run(ctx, "", c.zipBin, args...)
}

func (c *ExecCodec) run(ctx context.Context, dir, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &CommandError{
			Args:     append([]string{bin}, args...),
			ExitCode: code,
			Output:   out.String(),
			Err:      err,
		}
	}
	return nil
}
