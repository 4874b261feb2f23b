package server

import (
	"fmt"
	"net/http"

	"github.com/tliron/commonlog"

	"github.com/chazu/ellapad/examples"
)

var log = commonlog.GetLogger("ellapad.server")

// EllapadServer serves the playground transports: Connect (HTTP, CBOR
// codec) for the runner, session and example services, and socket.io for
// browsers. Both share one session store.
type EllapadServer struct {
	sessions *SessionStore
	sockets  *socketBridge
	mux      *http.ServeMux
}

// ServerOption configures an EllapadServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	queue   int
	catalog *examples.Catalog
}

// WithQueueDepth sets how many requests each session queues before
// rejecting new ones.
func WithQueueDepth(n int) ServerOption {
	return func(c *serverConfig) { c.queue = n }
}

// WithCatalog serves examples from catalog. Without it the example
// service is not mounted.
func WithCatalog(catalog *examples.Catalog) ServerOption {
	return func(c *serverConfig) { c.catalog = catalog }
}

// New creates an EllapadServer.
func New(opts ...ServerOption) *EllapadServer {
	cfg := &serverConfig{queue: DefaultQueueDepth}
	for _, opt := range opts {
		opt(cfg)
	}

	sessions := NewSessionStore(cfg.queue)
	s := &EllapadServer{
		sessions: sessions,
		sockets:  newSocketBridge(sessions),
		mux:      http.NewServeMux(),
	}

	runnerPath, runnerHandler := NewRunnerServiceHandler(NewRunnerService(sessions))
	sessionPath, sessionHandler := NewSessionServiceHandler(NewSessionServiceImpl(sessions))
	s.mux.Handle(runnerPath, runnerHandler)
	s.mux.Handle(sessionPath, sessionHandler)

	if cfg.catalog != nil {
		examplePath, exampleHandler := NewExampleServiceHandler(NewExampleService(cfg.catalog))
		s.mux.Handle(examplePath, exampleHandler)
	}

	s.mux.Handle("/socket.io/", s.sockets.io.ServeHandler(nil))

	return s
}

// Handler returns the HTTP handler serving every transport.
func (s *EllapadServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *EllapadServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *EllapadServer) ListenAndServe(addr string) error {
	fmt.Printf("ellapad server listening on %s\n", addr)
	fmt.Printf("  Connect (CBOR): http://%s%s\n", addr, RunnerServiceExecuteProcedure)
	fmt.Printf("  socket.io:      http://%s/socket.io/\n", addr)
	return http.ListenAndServe(addr, s.mux)
}

// Stop closes socket connections and destroys every session.
func (s *EllapadServer) Stop() {
	s.sockets.close()
	s.sessions.Close()
}
