package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chazu/ellapad/examples"
	"github.com/chazu/ellapad/runner"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// Sessions are cheap to bootstrap, so every test gets its own and nothing
// is shared between tests.
// ---------------------------------------------------------------------------

const testTimeout = 5 * time.Second

// newTestSession creates a session whose worker is stopped when the test
// ends.
func newTestSession(t *testing.T) *Session {
	t.Helper()
	store := NewSessionStore(8)
	session := store.Create(t.Name())
	t.Cleanup(func() { store.Close() })
	return session
}

// collect reads a response channel until it closes.
func collect(t *testing.T, ch <-chan Response) []Response {
	t.Helper()
	var out []Response
	timeout := time.After(testTimeout)
	for {
		select {
		case resp, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, resp)
		case <-timeout:
			t.Fatalf("response channel still open after %v; got %d responses", testTimeout, len(out))
			return nil
		}
	}
}

// execute runs source on session and returns the handler id and every
// response.
func execute(t *testing.T, session *Session, source string) (string, []Response) {
	t.Helper()
	id, ch, err := session.Dispatcher.Execute(context.Background(), source)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return id, collect(t, ch)
}

// blockWorker occupies the worker until the returned func is called.
func blockWorker(t *testing.T, w *SessionWorker) (release func()) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	if err := w.Post(func(*runner.Session) {
		close(started)
		<-gate
	}, nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	<-started
	return func() { close(gate) }
}

// testEnv bundles a running HTTP server with a client for it.
type testEnv struct {
	Server  *EllapadServer
	HTTP    *httptest.Server
	Client  *Client
	Catalog *examples.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalog, err := examples.OpenSeeded(":memory:", "")
	if err != nil {
		t.Fatalf("OpenSeeded: %v", err)
	}
	srv := New(WithQueueDepth(8), WithCatalog(catalog))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
		catalog.Close()
	})
	return &testEnv{
		Server:  srv,
		HTTP:    ts,
		Client:  NewClient(ts.Client(), ts.URL),
		Catalog: catalog,
	}
}
