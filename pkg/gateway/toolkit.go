package gateway

import (
	"log/slog"

	"github.com/marmos91/bitsgate/pkg/archive"
)

// Toolkit bundles the archive operations used to normalize packages.
type Toolkit struct {
	Extractor *archive.Extractor
	Builder   *archive.Builder
	Stripper  *archive.Stripper
}

// NewToolkit builds the three archive operations on top of one codec.
func NewToolkit(codec archive.Codec, deleteBatchSize int, logger *slog.Logger) *Toolkit {
	return &Toolkit{
		Extractor: archive.NewExtractor(codec, logger),
		Builder:   archive.NewBuilder(codec, logger),
		Stripper:  archive.NewStripper(codec, deleteBatchSize, logger),
	}
}
