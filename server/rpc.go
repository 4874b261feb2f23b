package server

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// Connect procedure names. Handlers and clients are built from plain
// structs and the CBOR codec; there is no generated code.
const (
	RunnerServiceName  = "ellapad.v1.RunnerService"
	SessionServiceName = "ellapad.v1.SessionService"
	ExampleServiceName = "ellapad.v1.ExampleService"

	RunnerServiceExecuteProcedure         = "/ellapad.v1.RunnerService/Execute"
	SessionServiceCreateSessionProcedure  = "/ellapad.v1.SessionService/CreateSession"
	SessionServiceDestroySessionProcedure = "/ellapad.v1.SessionService/DestroySession"
	ExampleServiceListExamplesProcedure   = "/ellapad.v1.ExampleService/ListExamples"
	ExampleServiceGetExampleProcedure     = "/ellapad.v1.ExampleService/GetExample"
)

// MaxRequestBytes caps the encoded size of a request message, bounding the
// source text a client can submit.
const MaxRequestBytes = 1 << 20

// handlerOptions puts the defaults every handler shares ahead of opts.
func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{WithCBOR(), connect.WithReadMaxBytes(MaxRequestBytes)}, opts...)
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type ExecuteRequest struct {
	SessionID string `cbor:"session_id"`
	Source    string `cbor:"source"`
}

type CreateSessionRequest struct {
	Name string `cbor:"name"`
}

type CreateSessionResponse struct {
	SessionID string `cbor:"session_id"`
}

type DestroySessionRequest struct {
	SessionID string `cbor:"session_id"`
}

type DestroySessionResponse struct{}

type ListExamplesRequest struct{}

type ExampleInfo struct {
	Name  string `cbor:"name"`
	Title string `cbor:"title"`
}

type ListExamplesResponse struct {
	Examples []ExampleInfo `cbor:"examples"`
}

type GetExampleRequest struct {
	Name string `cbor:"name"`
}

type GetExampleResponse struct {
	Name   string `cbor:"name"`
	Title  string `cbor:"title"`
	Source string `cbor:"source"`
}

// ---------------------------------------------------------------------------
// Service interfaces
// ---------------------------------------------------------------------------

type RunnerServiceHandler interface {
	Execute(context.Context, *connect.Request[ExecuteRequest], *connect.ServerStream[Response]) error
}

type SessionServiceHandler interface {
	CreateSession(context.Context, *connect.Request[CreateSessionRequest]) (*connect.Response[CreateSessionResponse], error)
	DestroySession(context.Context, *connect.Request[DestroySessionRequest]) (*connect.Response[DestroySessionResponse], error)
}

type ExampleServiceHandler interface {
	ListExamples(context.Context, *connect.Request[ListExamplesRequest]) (*connect.Response[ListExamplesResponse], error)
	GetExample(context.Context, *connect.Request[GetExampleRequest]) (*connect.Response[GetExampleResponse], error)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// procedureMux routes the procedures of one service.
func procedureMux(handlers map[string]*connect.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

func servicePath(name string) string {
	return "/" + name + "/"
}

// NewRunnerServiceHandler builds an HTTP handler for the runner service.
// It returns the path on which to mount it.
func NewRunnerServiceHandler(svc RunnerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return servicePath(RunnerServiceName), procedureMux(map[string]*connect.Handler{
		RunnerServiceExecuteProcedure: connect.NewServerStreamHandler(RunnerServiceExecuteProcedure, svc.Execute, opts...),
	})
}

// NewSessionServiceHandler builds an HTTP handler for the session service.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return servicePath(SessionServiceName), procedureMux(map[string]*connect.Handler{
		SessionServiceCreateSessionProcedure:  connect.NewUnaryHandler(SessionServiceCreateSessionProcedure, svc.CreateSession, opts...),
		SessionServiceDestroySessionProcedure: connect.NewUnaryHandler(SessionServiceDestroySessionProcedure, svc.DestroySession, opts...),
	})
}

// NewExampleServiceHandler builds an HTTP handler for the example service.
func NewExampleServiceHandler(svc ExampleServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return servicePath(ExampleServiceName), procedureMux(map[string]*connect.Handler{
		ExampleServiceListExamplesProcedure: connect.NewUnaryHandler(ExampleServiceListExamplesProcedure, svc.ListExamples, opts...),
		ExampleServiceGetExampleProcedure:   connect.NewUnaryHandler(ExampleServiceGetExampleProcedure, svc.GetExample, opts...),
	})
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

// Client calls every ellapad service on one server.
type Client struct {
	execute        *connect.Client[ExecuteRequest, Response]
	createSession  *connect.Client[CreateSessionRequest, CreateSessionResponse]
	destroySession *connect.Client[DestroySessionRequest, DestroySessionResponse]
	listExamples   *connect.Client[ListExamplesRequest, ListExamplesResponse]
	getExample     *connect.Client[GetExampleRequest, GetExampleResponse]
}

// NewClient creates a client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithCBOR()}, opts...)
	return &Client{
		execute:        connect.NewClient[ExecuteRequest, Response](httpClient, baseURL+RunnerServiceExecuteProcedure, opts...),
		createSession:  connect.NewClient[CreateSessionRequest, CreateSessionResponse](httpClient, baseURL+SessionServiceCreateSessionProcedure, opts...),
		destroySession: connect.NewClient[DestroySessionRequest, DestroySessionResponse](httpClient, baseURL+SessionServiceDestroySessionProcedure, opts...),
		listExamples:   connect.NewClient[ListExamplesRequest, ListExamplesResponse](httpClient, baseURL+ExampleServiceListExamplesProcedure, opts...),
		getExample:     connect.NewClient[GetExampleRequest, GetExampleResponse](httpClient, baseURL+ExampleServiceGetExampleProcedure, opts...),
	}
}

// Execute opens the response stream of one run.
func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) (*connect.ServerStreamForClient[Response], error) {
	return c.execute.CallServerStream(ctx, connect.NewRequest(req))
}

func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	resp, err := c.createSession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) DestroySession(ctx context.Context, req *DestroySessionRequest) error {
	_, err := c.destroySession.CallUnary(ctx, connect.NewRequest(req))
	return err
}

func (c *Client) ListExamples(ctx context.Context) (*ListExamplesResponse, error) {
	resp, err := c.listExamples.CallUnary(ctx, connect.NewRequest(&ListExamplesRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GetExample(ctx context.Context, name string) (*GetExampleResponse, error) {
	resp, err := c.getExample.CallUnary(ctx, connect.NewRequest(&GetExampleRequest{Name: name}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
