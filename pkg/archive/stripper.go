package archive

import (
	"context"
	"log/slog"
)

// DefaultDeleteBatchSize is the number of names passed to one Delete call.
const DefaultDeleteBatchSize = 100

// Stripper removes directory entries from archives.
type Stripper struct {
	codec     Codec
	batchSize int
	logger    *slog.Logger
}

// NewStripper returns a Stripper. A batchSize <= 0 selects
// DefaultDeleteBatchSize. A nil logger discards output.
func NewStripper(codec Codec, batchSize int, logger *slog.Logger) *Stripper {
	if batchSize <= 0 {
		batchSize = DefaultDeleteBatchSize
	}
	return &Stripper{codec: codec, batchSize: batchSize, logger: orDiscard(logger)}
}

// StripDirectoryEntries deletes every directory entry of the archive, in
// batches of at most batchSize names per codec invocation. The first failing
// batch aborts the operation with a PackageInvalid error; earlier batches
// stay applied.
func (s *Stripper) StripDirectoryEntries(ctx context.Context, archivePath string) error {
	entries, err := s.codec.List(ctx, archivePath)
	if err != nil {
		return packageInvalid(archivePath, "cannot read archive", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.Kind == EntryDirectory {
			dirs = append(dirs, e.Name)
		}
	}

	for start := 0; start < len(dirs); start += s.batchSize {
		end := min(start+s.batchSize, len(dirs))
		if err := s.codec.Delete(ctx, archivePath, dirs[start:end]); err != nil {
			s.logger.Warn("deleting directory entries failed",
				"archive", archivePath, "batch_start", start, "batch_len", end-start,
				"error", err, "output", diagnostic(err))
			return packageInvalid(archivePath, "deleting directory entries failed", err)
		}
	}

	if len(dirs) > 0 {
		s.logger.Debug("stripped directory entries", "archive", archivePath, "count", len(dirs))
	}
	return nil
}
