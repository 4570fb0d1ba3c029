package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestNewClient_DefaultTimeout(t *testing.T) {
	client := NewClient(0)
	if client.Timeout != defaultClientTimeout {
		t.Fatalf("timeout = %v, want %v", client.Timeout, defaultClientTimeout)
	}
	if _, ok := client.Transport.(*otelhttp.Transport); !ok {
		t.Fatalf("transport type = %T, want *otelhttp.Transport", client.Transport)
	}
}

func TestNewClient_UsesShortTimeoutAsProvided(t *testing.T) {
	want := 1500 * time.Millisecond
	client := NewClient(want)
	if client.Timeout != want {
		t.Fatalf("timeout = %v, want %v", client.Timeout, want)
	}
}

func TestNewStreamingClient_HasNoTotalTimeout(t *testing.T) {
	client := NewStreamingClient(10 * time.Second)
	if client.Timeout != 0 {
		t.Fatalf("timeout = %v, want 0", client.Timeout)
	}
}

func TestNewStreamingClient_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := NewStreamingClient(time.Second).Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if got := resp.Header.Get("Location"); got != "/login" {
		t.Fatalf("location = %q, want /login", got)
	}
}

func TestNewStreamingClient_DialGuard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	refused := errors.New("refused")
	var seen string
	client := NewStreamingClient(time.Second, WithDialGuard(func(d *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
		if d == nil {
			t.Fatal("guard did not receive the client dialer")
		}
		return func(_ context.Context, _, address string) (net.Conn, error) {
			seen = address
			return nil, refused
		}
	}))

	_, err := client.Get(srv.URL)
	if !errors.Is(err, refused) {
		t.Fatalf("expected dial guard error, got %v", err)
	}
	if seen != srv.Listener.Addr().String() {
		t.Fatalf("guard dialed %q, want %q", seen, srv.Listener.Addr().String())
	}
}
