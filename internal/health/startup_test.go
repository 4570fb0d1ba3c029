// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/pagestream/internal/config"
)

func startupConfig(t *testing.T) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0600))

	var cfg config.AppConfig
	cfg.ListenAddr = ":8080"
	cfg.Templates.Dir = dir
	return cfg
}

func TestPerformStartupChecks_OK(t *testing.T) {
	assert.NoError(t, PerformStartupChecks(context.Background(), startupConfig(t)))
}

func TestPerformStartupChecks_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.AppConfig)
		want   string
	}{
		{
			name:   "missing template dir",
			mutate: func(c *config.AppConfig) { c.Templates.Dir = filepath.Join(c.Templates.Dir, "nope") },
			want:   "does not exist",
		},
		{
			name:   "bad listen port",
			mutate: func(c *config.AppConfig) { c.ListenAddr = "localhost:http" },
			want:   "invalid listen port",
		},
		{
			name:   "cdn scheme",
			mutate: func(c *config.AppConfig) { c.Fragments.CDNURL = "ftp://cdn.example" },
			want:   "scheme must be http or https",
		},
		{
			name:   "unreadable context file",
			mutate: func(c *config.AppConfig) { c.Context.File = filepath.Join(c.Templates.Dir, "missing.yaml") },
			want:   "context file error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := startupConfig(t)
			tt.mutate(&cfg)
			err := PerformStartupChecks(context.Background(), cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
