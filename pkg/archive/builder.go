package archive

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Builder adds directory trees to archives.
type Builder struct {
	codec  Codec
	logger *slog.Logger
}

// NewBuilder returns a Builder. A nil logger discards output.
func NewBuilder(codec Codec, logger *slog.Logger) *Builder {
	return &Builder{codec: codec, logger: orDiscard(logger)}
}

// Append adds every file, directory and symlink under sourceDir to the
// archive at archivePath, creating it when missing. An empty sourceDir is a
// no-op. Failures are PackageInvalid errors; the archive may be left
// modified on failure.
func (b *Builder) Append(ctx context.Context, archivePath, sourceDir string) error {
	empty, err := isEmptyDir(sourceDir)
	if err != nil {
		return packageInvalid(sourceDir, "cannot read source directory", err)
	}
	if empty {
		b.logger.Debug("source directory is empty, nothing to append", "dir", sourceDir)
		return nil
	}

	if err := b.codec.Append(ctx, archivePath, sourceDir); err != nil {
		b.logger.Warn("append failed", "archive", archivePath, "dir", sourceDir, "error", err, "output", diagnostic(err))
		return packageInvalid(archivePath, "append failed", err)
	}
	return nil
}

func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
