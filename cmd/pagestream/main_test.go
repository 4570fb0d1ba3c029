// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSite(t *testing.T, templates map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range templates {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("templates:\n  dir: "+dir+"\n  watch: false\n"), 0o600))
	return configPath
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{serviceName}, args...))
	return out.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := runApp(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
	assert.Contains(t, out, "commit: "+commit)
}

func TestRender_Stdout(t *testing.T) {
	frag := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<nav>"+r.Header.Get("Accept-Language")+"</nav>")
	}))
	defer frag.Close()

	configPath := writeSite(t, map[string]string{
		"index.html": `<body><fragment src="` + frag.URL + `"></fragment></body>`,
	})
	t.Setenv("PAGESTREAM_FORWARD_HEADERS", "Accept-Language")

	out, err := runApp(t, "--config", configPath, "render", "-H", "Accept-Language: fr", "/")
	require.NoError(t, err)
	assert.Equal(t, "<body><nav>fr</nav></body>", out)
}

func TestRender_OutFile(t *testing.T) {
	configPath := writeSite(t, map[string]string{"about.html": "<p>about</p>"})
	target := filepath.Join(t.TempDir(), "about.out.html")

	out, err := runApp(t, "--config", configPath, "render", "--out", target, "about")
	require.NoError(t, err)
	assert.Empty(t, out)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<p>about</p>", string(written))
}

func TestRender_Errors(t *testing.T) {
	configPath := writeSite(t, map[string]string{"index.html": "<p>x</p>"})

	_, err := runApp(t, "--config", configPath, "render")
	assert.ErrorContains(t, err, "missing PATH")

	_, err = runApp(t, "--config", configPath, "render", "/missing")
	assert.ErrorContains(t, err, "status 500")

	_, err = runApp(t, "--config", configPath, "render", "-H", "no-colon", "/")
	assert.ErrorContains(t, err, "malformed header")
}

func TestLoadConfig_Invalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("templates:\n  dir: /does/not/exist\n"), 0o600))

	_, err := runApp(t, "--config", configPath, "render", "/")
	assert.Error(t, err)
}
