// SPDX-License-Identifier: MIT

// Package smartpipe decides per request whether every non-primary fragment
// is delivered asynchronously. The decision is an expression evaluated over
// the request, for example:
//
//	Path startsWith "/shop" && not (Header["user-agent"] contains "Googlebot")
package smartpipe

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/pagestream/internal/log"
)

// Env is the evaluation environment. Header names are lower case.
type Env struct {
	Path   string            `expr:"Path"`
	Method string            `expr:"Method"`
	Header map[string]string `expr:"Header"`
	Query  map[string]string `expr:"Query"`
}

// NewEnv extracts the environment from r. Only the first value of repeated
// headers and query parameters is visible.
func NewEnv(r *http.Request) Env {
	env := Env{
		Path:   r.URL.Path,
		Method: r.Method,
		Header: make(map[string]string, len(r.Header)),
		Query:  map[string]string{},
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			env.Header[strings.ToLower(k)] = v[0]
		}
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			env.Query[k] = v[0]
		}
	}
	return env
}

// Decider evaluates a compiled expression. The zero value and a nil Decider
// always decide false.
type Decider struct {
	source  string
	program *vm.Program
	logger  zerolog.Logger
}

// Compile parses source. An empty source yields a Decider that never forces.
func Compile(source string) (*Decider, error) {
	d := &Decider{source: source, logger: xglog.WithComponent("smartpipe")}
	if strings.TrimSpace(source) == "" {
		return d, nil
	}
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile smart pipe expression: %w", err)
	}
	d.program = program
	return d, nil
}

// String returns the expression source.
func (d *Decider) String() string {
	if d == nil {
		return ""
	}
	return d.source
}

// Decide reports whether r should be served with every fragment async.
// Evaluation errors count as false.
func (d *Decider) Decide(r *http.Request) bool {
	if d == nil || d.program == nil {
		return false
	}
	out, err := expr.Run(d.program, NewEnv(r))
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str(xglog.FieldPath, r.URL.Path).
			Msg("smart pipe expression failed")
		return false
	}
	forced, _ := out.(bool)
	return forced
}
