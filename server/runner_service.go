package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
)

// RunnerService implements the RunnerService Connect handler.
type RunnerService struct {
	sessions *SessionStore
}

// NewRunnerService creates a RunnerService.
func NewRunnerService(sessions *SessionStore) *RunnerService {
	return &RunnerService{sessions: sessions}
}

// Execute runs source in a session and streams its responses. The stream
// ends after the request's terminal state. If the client goes away the
// request is disposed and finishes without it.
func (s *RunnerService) Execute(
	ctx context.Context,
	req *connect.Request[ExecuteRequest],
	stream *connect.ServerStream[Response],
) error {
	if req.Msg.SessionID == "" {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	session, ok := s.sessions.Get(req.Msg.SessionID)
	if !ok {
		return connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}

	id, responses, err := session.Dispatcher.Execute(ctx, req.Msg.Source)
	if err != nil {
		return connect.NewError(connect.CodeUnavailable, err)
	}
	defer session.Dispatcher.Dispose(id)

	for resp := range responses {
		if err := stream.Send(&resp); err != nil {
			return err
		}
	}
	return nil
}
