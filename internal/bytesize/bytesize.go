// Package bytesize provides a byte count type that decodes from
// human-readable strings such as "1Gi", "512MB" or "1024".
package bytesize

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
)

// ByteSize is a size in bytes. Unit suffixes are binary: "1K", "1Ki" and
// "1KiB" all mean 1024 bytes.
type ByteSize int64

const (
	B   ByteSize = 1
	KiB ByteSize = units.KiB
	MiB ByteSize = units.MiB
	GiB ByteSize = units.GiB
	TiB ByteSize = units.TiB
)

// ParseByteSize parses s into a ByteSize.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}
	// go-units reads "Mi" as a bad suffix; it only accepts "M", "MB" or "MiB".
	norm := s
	if last := s[len(s)-1]; last == 'i' || last == 'I' {
		norm += "B"
	}
	n, err := units.RAMInBytes(norm)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which lets viper and
// yaml decode ByteSize fields from strings.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText renders the size so that a saved config round-trips.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String returns a human-readable representation such as "100MiB".
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// Int64 returns the size as an int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
