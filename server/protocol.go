package server

// RequestKind identifies a message sent to a session.
type RequestKind int

const (
	// ExecuteCode compiles and runs Source in the session.
	ExecuteCode RequestKind = iota
)

// Request is a message sent to a session's dispatcher.
type Request struct {
	Kind   RequestKind
	Source string
}

// ResponseKind identifies a message sent back for a request.
type ResponseKind int

const (
	// ResponseStdout carries the full transcript so far. Zero or more per
	// request.
	ResponseStdout ResponseKind = iota
	// ResponseError is terminal and carries a compile report, a runtime
	// error or an internal failure. At most one per request.
	ResponseError
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseStdout:
		return "stdout"
	case ResponseError:
		return "error"
	}
	return "unknown"
}

// Response is one message routed to the request identified by HandlerID.
type Response struct {
	HandlerID string       `cbor:"handler_id"`
	Kind      ResponseKind `cbor:"kind"`
	Text      string       `cbor:"text"`
}

// RequestState tracks one request through the pipeline.
type RequestState int

const (
	StateReceived RequestState = iota
	StateCompiling
	StateExecuting
	StateCompleted
	StateCompileFailed
)

var stateNames = [...]string{
	StateReceived:      "received",
	StateCompiling:     "compiling",
	StateExecuting:     "executing",
	StateCompleted:     "completed",
	StateCompileFailed: "compile-failed",
}

func (s RequestState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s RequestState) Terminal() bool {
	return s == StateCompleted || s == StateCompileFailed
}
