package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/writeback"
)

// Client talks to a running daemon over its socket. Each call uses a new
// connection.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeDaemonNotReachable, "failed to connect to daemon", err).
			WithSuggestion("Start the daemon with 'semdesk daemon start'")
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return err
	}
	if !res.Pong {
		return errors.New("ping failed: no pong")
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Suspend stops indexing until Resume.
func (c *Client) Suspend(ctx context.Context) (StateResult, error) {
	var res StateResult
	err := c.call(ctx, MethodSuspend, nil, &res)
	return res, err
}

// Resume clears a Suspend.
func (c *Client) Resume(ctx context.Context) (StateResult, error) {
	var res StateResult
	err := c.call(ctx, MethodResume, nil, &res)
	return res, err
}

// Activity reports user activity.
func (c *Client) Activity(ctx context.Context) (StateResult, error) {
	var res StateResult
	err := c.call(ctx, MethodActivity, nil, &res)
	return res, err
}

// UpdateFolder queues a pass over a configured folder.
func (c *Client) UpdateFolder(ctx context.Context, params FolderParams) (AcceptedResult, error) {
	var res AcceptedResult
	if err := params.Validate(); err != nil {
		return res, fmt.Errorf("invalid params: %w", err)
	}
	err := c.call(ctx, MethodUpdateFolder, params, &res)
	return res, err
}

// UpdateAllFolders queues a pass over every configured folder.
func (c *Client) UpdateAllFolders(ctx context.Context, params UpdateAllParams) (AcceptedResult, error) {
	var res AcceptedResult
	err := c.call(ctx, MethodUpdateAllFolders, params, &res)
	return res, err
}

// IndexFolder queues a pass over any folder.
func (c *Client) IndexFolder(ctx context.Context, params FolderParams) (AcceptedResult, error) {
	var res AcceptedResult
	if err := params.Validate(); err != nil {
		return res, fmt.Errorf("invalid params: %w", err)
	}
	err := c.call(ctx, MethodIndexFolder, params, &res)
	return res, err
}

// IndexFile queues a single file.
func (c *Client) IndexFile(ctx context.Context, params FileParams) (AcceptedResult, error) {
	var res AcceptedResult
	if err := params.Validate(); err != nil {
		return res, fmt.Errorf("invalid params: %w", err)
	}
	err := c.call(ctx, MethodIndexFile, params, &res)
	return res, err
}

// Search runs a full-text query.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var results []SearchResult
	if err := c.call(ctx, MethodSearch, params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Maintain triggers, or with Wait runs, a graph maintenance sweep.
func (c *Client) Maintain(ctx context.Context, params MaintainParams) (MaintainResult, error) {
	var res MaintainResult
	err := c.call(ctx, MethodMaintain, params, &res)
	return res, err
}

// Writeback writes a resource's metadata out with the writeback plugins.
func (c *Client) Writeback(ctx context.Context, params WritebackParams) (writeback.Result, error) {
	var res writeback.Result
	if err := params.Validate(); err != nil {
		return res, fmt.Errorf("invalid params: %w", err)
	}
	err := c.call(ctx, MethodWriteback, params, &res)
	return res, err
}

// call performs one request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
		ID      string          `json:"id"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.ID != req.ID {
		return fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
