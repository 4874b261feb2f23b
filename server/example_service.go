package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/ellapad/examples"
)

// ExampleService implements the ExampleService Connect handler.
type ExampleService struct {
	catalog *examples.Catalog
}

// NewExampleService creates an ExampleService backed by catalog.
func NewExampleService(catalog *examples.Catalog) *ExampleService {
	return &ExampleService{catalog: catalog}
}

// ListExamples returns the name and title of every example.
func (s *ExampleService) ListExamples(
	ctx context.Context,
	req *connect.Request[ListExamplesRequest],
) (*connect.Response[ListExamplesResponse], error) {
	list, err := s.catalog.List(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &ListExamplesResponse{}
	for _, ex := range list {
		resp.Examples = append(resp.Examples, ExampleInfo{Name: ex.Name, Title: ex.Title})
	}
	return connect.NewResponse(resp), nil
}

// GetExample returns one example's source. Clients show
// examples.Placeholder when this fails.
func (s *ExampleService) GetExample(
	ctx context.Context,
	req *connect.Request[GetExampleRequest],
) (*connect.Response[GetExampleResponse], error) {
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}

	ex, err := s.catalog.Get(ctx, req.Msg.Name)
	if errors.Is(err, examples.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&GetExampleResponse{
		Name:   ex.Name,
		Title:  ex.Title,
		Source: ex.Source,
	}), nil
}
