// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/renameio/v2"
	cli "github.com/urfave/cli/v3"

	"github.com/ManuGH/pagestream/internal/server"
)

const renderHost = "http://pagestream.local"

// render composes the page named by the first argument without starting a
// listener. Pages answering with an error status are not written.
func render(stdout io.Writer) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.Args().First()
		if path == "" {
			return errors.New("render: missing PATH argument")
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}

		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Templates.Watch = false

		srv, err := server.New(cfg, version)
		if err != nil {
			return err
		}
		defer srv.Close()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, renderHost+path, nil)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		for _, h := range cmd.StringSlice("header") {
			name, value, ok := strings.Cut(h, ":")
			if !ok {
				return fmt.Errorf("render: malformed header %q", h)
			}
			req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
		}

		var page bytes.Buffer
		status, _, err := srv.Render(req, &page)
		if err != nil {
			return fmt.Errorf("render %s: %w", path, err)
		}
		if status >= http.StatusBadRequest {
			return fmt.Errorf("render %s: status %d", path, status)
		}

		if out := cmd.String("out"); out != "" {
			return writeFile(out, page.Bytes())
		}
		_, err = stdout.Write(page.Bytes())
		return err
	}
}

func writeFile(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
