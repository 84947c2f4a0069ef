package daemon

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/semdesk/internal/maintenance"
	"github.com/Aman-CERP/semdesk/internal/profiling"
	"github.com/Aman-CERP/semdesk/internal/scheduler"
	"github.com/Aman-CERP/semdesk/internal/store"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing             = "ping"
	MethodStatus           = "status"
	MethodSuspend          = "suspend"
	MethodResume           = "resume"
	MethodActivity         = "activity"
	MethodUpdateFolder     = "update_folder"
	MethodUpdateAllFolders = "update_all_folders"
	MethodIndexFolder      = "index_folder"
	MethodIndexFile        = "index_file"
	MethodSearch           = "search"
	MethodMaintain         = "maintain"
	MethodWriteback        = "writeback"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	// ErrCodeStorageUnavailable means the repository could not be opened.
	ErrCodeStorageUnavailable = -32001
	// ErrCodeRejected means a request was refused by the folder filters.
	ErrCodeRejected = -32002
	// ErrCodeOperationFailed means the operation ran and failed.
	ErrCodeOperationFailed = -32003
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the structured error
// code when there is one.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface so clients can return RPC errors
// directly.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// FolderParams are the parameters for update_folder and index_folder.
type FolderParams struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"`
	Forced    bool   `json:"forced,omitempty"`
}

// Validate checks that required fields are present.
func (p *FolderParams) Validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// UpdateAllParams are the parameters for update_all_folders.
type UpdateAllParams struct {
	Forced bool `json:"forced,omitempty"`
}

// FileParams are the parameters for index_file.
type FileParams struct {
	Path string `json:"path"`
}

// Validate checks that required fields are present.
func (p *FileParams) Validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is the full-text query (required).
	Query string `json:"query"`

	// Limit is the maximum number of results (default: 10).
	Limit int `json:"limit,omitempty"`
}

// Validate checks that required fields are present and applies defaults.
func (p *SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	return nil
}

// SearchResult is one search hit with the file it describes.
type SearchResult struct {
	Resource     string   `json:"resource"`
	URL          string   `json:"url,omitempty"`
	Path         string   `json:"path,omitempty"`
	MimeType     string   `json:"mime_type,omitempty"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// MaintainParams are the parameters for the maintain method.
type MaintainParams struct {
	// Wait runs the sweep synchronously and returns its statistics.
	Wait bool `json:"wait,omitempty"`
	// Reindex rebuilds every full-text document before the sweep.
	Reindex bool `json:"reindex,omitempty"`
}

// MaintainResult reports a maintenance request.
type MaintainResult struct {
	Triggered bool               `json:"triggered"`
	Stats     *maintenance.Stats `json:"stats,omitempty"`
	Reindexed int                `json:"reindexed,omitempty"`
}

// WritebackParams identify the resource to write back, either directly or
// by the path of its file.
type WritebackParams struct {
	Resource string `json:"resource,omitempty"`
	Path     string `json:"path,omitempty"`
}

// Validate checks that exactly one identifier is present.
func (p *WritebackParams) Validate() error {
	if (p.Resource == "") == (p.Path == "") {
		return fmt.Errorf("exactly one of resource or path is required")
	}
	return nil
}

// AcceptedResult reports whether a request was queued.
type AcceptedResult struct {
	Accepted bool `json:"accepted"`
	Queued   int  `json:"queued,omitempty"`
}

// StateResult is the scheduler state after suspend, resume or activity.
type StateResult struct {
	State            scheduler.State `json:"state"`
	Status           string          `json:"status"`
	PausedByActivity bool            `json:"paused_by_activity"`
}

// Storage availability values reported by status.
const (
	StorageAvailable   = "available"
	StorageUnavailable = "unavailable"
)

// StatusResult contains daemon status information.
type StatusResult struct {
	Running      bool                        `json:"running"`
	PID          int                         `json:"pid"`
	Uptime       string                      `json:"uptime"`
	Storage      string                      `json:"storage"`
	StorageError string                      `json:"storage_error,omitempty"`
	StoragePath  string                      `json:"storage_path"`
	Runtime      profiling.Usage             `json:"runtime"`
	Repository   *store.Stats                `json:"repository,omitempty"`
	Scheduler    *scheduler.ProgressSnapshot `json:"scheduler,omitempty"`
	Maintenance  *MaintenanceStatus          `json:"maintenance,omitempty"`
	Watcher      *WatcherStatus              `json:"watcher,omitempty"`
}

// MaintenanceStatus summarises graph maintenance.
type MaintenanceStatus struct {
	Running bool              `json:"running"`
	Last    maintenance.Stats `json:"last"`
	Total   maintenance.Stats `json:"total"`
}

// WatcherStatus summarises the file watcher.
type WatcherStatus struct {
	Directories int    `json:"directories"`
	Dispatched  uint64 `json:"dispatched"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
