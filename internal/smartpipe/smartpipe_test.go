// SPDX-License-Identifier: MIT

package smartpipe

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecider_Decide(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target string
		header map[string]string
		want   bool
	}{
		{name: "empty never forces", source: "", target: "/", want: false},
		{name: "path prefix", source: `Path startsWith "/shop"`, target: "/shop/cart", want: true},
		{name: "path mismatch", source: `Path startsWith "/shop"`, target: "/blog", want: false},
		{name: "query flag", source: `Query["pipe"] == "1"`, target: "/?pipe=1", want: true},
		{
			name:   "header is lower cased",
			source: `Header["user-agent"] contains "Mobile"`,
			target: "/",
			header: map[string]string{"User-Agent": "Mobile Safari"},
			want:   true,
		},
		{name: "method", source: `Method == "HEAD"`, target: "/", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Compile(tt.source)
			require.NoError(t, err)

			r := httptest.NewRequest("GET", tt.target, nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, d.Decide(r))
		})
	}
}

func TestCompile_RejectsNonBool(t *testing.T) {
	_, err := Compile(`Path + "x"`)
	assert.Error(t, err)

	_, err = Compile(`Unknown == 1`)
	assert.Error(t, err)
}

func TestDecider_NilIsFalse(t *testing.T) {
	var d *Decider
	assert.False(t, d.Decide(httptest.NewRequest("GET", "/", nil)))
	assert.Equal(t, "", d.String())
}

func TestDecider_RuntimeErrorIsFalse(t *testing.T) {
	d, err := Compile(`Query["n"] matches Query["p"]`)
	require.NoError(t, err)
	assert.False(t, d.Decide(httptest.NewRequest("GET", "/?n=1&p=(", nil)))
}
