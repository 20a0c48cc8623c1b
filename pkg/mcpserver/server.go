// Package mcpserver serves the flowcheck tool catalog over the Model Context
// Protocol.
//
// The server is constructed once at process entry with the dispatcher that
// owns the project, then Run on a transport (stdio for assistants, in-memory
// transports in tests). Shutdown stops a running server from another
// goroutine, typically the process's signal handler.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/entrhq/flowcheck/pkg/dispatch"
	"github.com/entrhq/flowcheck/pkg/logging"
)

// Name is the implementation name reported to clients.
const Name = "flowcheck"

const instructions = `Flowcheck manages and runs the browser end-to-end tests of this project.
Tests are Go files in the tests area built from scenarios of named steps; page
objects live in the pages area. Use list_tests and read_test before editing,
create_test for new files and update_test to replace existing ones, then
run_test to execute them and get_test_results to inspect the outcome.`

// ErrRunning is returned by Run when the server is already serving.
var ErrRunning = errors.New("server is already running")

// Server exposes a Dispatcher's tools and resources to MCP clients.
type Server struct {
	mcp        *mcp.Server
	dispatcher *dispatch.Dispatcher
	profile    dispatch.Profile
	log        *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New registers the tools and resources profile exposes.
func New(d *dispatch.Dispatcher, profile dispatch.Profile, version string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, &mcp.ServerOptions{
			Instructions: instructions,
		}),
		dispatcher: d,
		profile:    profile,
		log:        log,
	}

	for _, tool := range d.Tools(profile) {
		s.mcp.AddTool(&mcp.Tool{
			Name:        tool.Name(),
			Description: tool.Description,
			InputSchema: tool.Schema,
		}, s.toolHandler(tool.Kind))
	}
	for _, r := range profile.Resources() {
		s.mcp.AddResource(&mcp.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MIMEType,
		}, s.readResource)
	}
	return s
}

func (s *Server) toolHandler(k dispatch.Kind) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := s.dispatcher.Invoke(ctx, k, req.Params.Arguments)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
			IsError: res.IsError,
		}, nil
	}
}

func (s *Server) readResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, err := s.dispatcher.ReadResource(ctx, req.Params.URI)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownOperation) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		s.log.Errorf("Reading %s failed: %v", req.Params.URI, err)
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      content.URI,
			MIMEType: content.MIMEType,
			Text:     content.Text,
		}},
	}, nil
}

// Run serves one client over t until the client disconnects, ctx is
// cancelled or Shutdown is called. A shutdown is not an error.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel, s.done = nil, nil
		s.mu.Unlock()
		close(done)
	}()

	s.log.Infof("Serving %d tools (%s profile) from %s", len(s.dispatcher.Tools(s.profile)), s.profile, s.dispatcher.Dir())
	err := s.mcp.Run(ctx, t)
	if err != nil && ctx.Err() != nil {
		s.log.Infof("Server stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Shutdown stops a running server and waits for Run to return, or for ctx
// to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	s.log.Infof("Shutting down")
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
