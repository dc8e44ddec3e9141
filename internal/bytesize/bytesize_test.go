package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"bytes suffix", "1024b", 1024, false},
		{"kibibytes", "1Ki", KiB, false},
		{"kibibytes long", "1KiB", KiB, false},
		{"kilo is binary", "1K", KiB, false},
		{"mebibytes", "100Mi", 100 * MiB, false},
		{"megabytes", "100MB", 100 * MiB, false},
		{"gibibytes", "1Gi", GiB, false},
		{"two gibibytes", "2Gi", 2 * GiB, false},
		{"lowercase binary", "2gi", 2 * GiB, false},
		{"tebibytes", "1Ti", TiB, false},
		{"lowercase", "1g", GiB, false},
		{"space between", "1 GiB", GiB, false},
		{"surrounding whitespace", "  512Mi  ", 512 * MiB, false},
		{"fraction", "1.5Mi", ByteSize(1.5 * float64(MiB)), false},

		{"empty", "", 0, true},
		{"blank", "   ", 0, true},
		{"unknown unit", "10XB", 0, true},
		{"negative", "-1Mi", 0, true},
		{"letters only", "Gi", 0, true},
		{"bare i suffix", "1i", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestByteSize_String(t *testing.T) {
	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "1KiB", KiB.String())
	assert.Equal(t, "100MiB", (100 * MiB).String())
	assert.Equal(t, "1.5GiB", (GiB + GiB/2).String())
}

func TestByteSize_YAML(t *testing.T) {
	var cfg struct {
		Max ByteSize `yaml:"max"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("max: 2Gi\n"), &cfg))
	assert.Equal(t, 2*GiB, cfg.Max)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, "max: 2GiB\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("max: lots\n"), &cfg))
}
