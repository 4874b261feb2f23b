package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
)

// SessionServiceImpl implements the SessionService Connect handler.
type SessionServiceImpl struct {
	sessions *SessionStore
}

// NewSessionServiceImpl creates a SessionServiceImpl.
func NewSessionServiceImpl(sessions *SessionStore) *SessionServiceImpl {
	return &SessionServiceImpl{sessions: sessions}
}

// CreateSession creates a new session with freshly bootstrapped builtins.
func (s *SessionServiceImpl) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	session := s.sessions.Create(req.Msg.Name)
	return connect.NewResponse(&CreateSessionResponse{
		SessionID: session.ID,
	}), nil
}

// DestroySession disposes a session's requests and stops its worker.
func (s *SessionServiceImpl) DestroySession(
	ctx context.Context,
	req *connect.Request[DestroySessionRequest],
) (*connect.Response[DestroySessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}

	if !s.sessions.Destroy(req.Msg.SessionID) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}
	return connect.NewResponse(&DestroySessionResponse{}), nil
}
