package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/writeback"
)

// RequestHandler implements the RPC methods.
type RequestHandler interface {
	Status(ctx context.Context) StatusResult
	Suspend(ctx context.Context) (StateResult, error)
	Resume(ctx context.Context) (StateResult, error)
	Activity(ctx context.Context) (StateResult, error)
	UpdateFolder(ctx context.Context, params FolderParams) (AcceptedResult, error)
	UpdateAllFolders(ctx context.Context, params UpdateAllParams) (AcceptedResult, error)
	IndexFolder(ctx context.Context, params FolderParams) (AcceptedResult, error)
	IndexFile(ctx context.Context, params FileParams) (AcceptedResult, error)
	Search(ctx context.Context, params SearchParams) ([]SearchResult, error)
	Maintain(ctx context.Context, params MaintainParams) (MaintainResult, error)
	Writeback(ctx context.Context, params WritebackParams) (writeback.Result, error)
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	timeout    time.Duration
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for the given socket path.
func NewServer(socketPath string, handler RequestHandler) *Server {
	return &Server{
		socketPath: socketPath,
		timeout:    30 * time.Second,
		handler:    handler,
	}
}

// ListenAndServe starts the server and blocks until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// Uptime returns how long the server has been listening.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

// handleConnection processes a single request on conn.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		slog.Warn("connection_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeInvalidRequest, "invalid JSON-RPC 2.0 request"))
		return
	}

	_ = encoder.Encode(s.handleRequest(ctx, req))
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.Method == MethodPing {
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	}
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodStatus:
		status := s.handler.Status(ctx)
		status.Uptime = s.Uptime().Round(time.Second).String()
		result = status
	case MethodSuspend:
		result, err = s.handler.Suspend(ctx)
	case MethodResume:
		result, err = s.handler.Resume(ctx)
	case MethodActivity:
		result, err = s.handler.Activity(ctx)
	case MethodUpdateFolder:
		var p FolderParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.UpdateFolder(ctx, p)
	case MethodUpdateAllFolders:
		var p UpdateAllParams
		if resp, ok := decodeParams(req, &p, nil); !ok {
			return resp
		}
		result, err = s.handler.UpdateAllFolders(ctx, p)
	case MethodIndexFolder:
		var p FolderParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.IndexFolder(ctx, p)
	case MethodIndexFile:
		var p FileParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.IndexFile(ctx, p)
	case MethodSearch:
		var p SearchParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.Search(ctx, p)
	case MethodMaintain:
		var p MaintainParams
		if resp, ok := decodeParams(req, &p, nil); !ok {
			return resp
		}
		result, err = s.handler.Maintain(ctx, p)
	case MethodWriteback:
		var p WritebackParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		result, err = s.handler.Writeback(ctx, p)
	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	if err != nil {
		return errorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, result)
}

// decodeParams converts req.Params into dst and runs validate. On failure
// it returns the error response to send.
func decodeParams(req Request, dst any, validate func() error) (Response, bool) {
	if req.Params != nil {
		data, err := json.Marshal(req.Params)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
		}
	}
	if validate != nil {
		if err := validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error()), false
		}
	}
	return Response{}, true
}

// errorResponse maps a handler error to a JSON-RPC error, keeping the
// structured error code as data.
func errorResponse(id string, err error) Response {
	code := ErrCodeOperationFailed
	semCode := semerrors.GetCode(err)
	switch semCode {
	case semerrors.ErrCodeIndexUnavailable, semerrors.ErrCodeStoreUnavailable, semerrors.ErrCodeRepositoryLocked:
		code = ErrCodeStorageUnavailable
	case semerrors.ErrCodeInvalidInput, semerrors.ErrCodeInvalidPath:
		code = ErrCodeInvalidParams
	case semerrors.ErrCodeNotIndexed:
		code = ErrCodeRejected
	}

	resp := NewErrorResponse(id, code, err.Error())
	if semCode != "" {
		resp.Error.Data = semCode
	}
	return resp
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
