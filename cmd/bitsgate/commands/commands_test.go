package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/bitsgate/pkg/config"
	"github.com/marmos91/bitsgate/pkg/gateway"
)

func TestRouterOptions(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Droplets = config.StoreConfig{Type: config.StoreTypeMemory, Container: "droplets"}
	cfg.Nginx.UseNginx = true
	cfg.Metrics.Enabled = true
	cfg.TempDir = "/scratch"

	opts := RouterOptions(cfg)

	assert.True(t, opts.MetricsEnabled)
	assert.True(t, opts.Resources.Production)
	assert.Equal(t, "/scratch", opts.Resources.TempDir)
	assert.Equal(t, cfg.Server.MaxBodySize.Int64(), opts.Resources.MaxBodySize)
	assert.True(t, opts.Resources.Nginx.Enabled)
	assert.Equal(t, "/internal", opts.Resources.Nginx.InternalPrefix)
	assert.Equal(t, cfg.Buildpacks.Local.Path, opts.Resources.Nginx.Roots[gateway.KindBuildpacks])
	assert.NotContains(t, opts.Resources.Nginx.Roots, gateway.KindDroplets)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	assert.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "bitsgate dev")
}

func TestGetConfigSource(t *testing.T) {
	assert.Equal(t, "/etc/bitsgate.yaml", getConfigSource("/etc/bitsgate.yaml"))
}
