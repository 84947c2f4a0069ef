package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/scheduler"
)

func clientFor(socketPath string) *Client {
	return NewClient(Config{SocketPath: socketPath, PIDPath: socketPath + ".pid", Timeout: 2 * time.Second})
}

func TestClient_NotRunning(t *testing.T) {
	c := clientFor(filepath.Join(t.TempDir(), "none.sock"))

	assert.False(t, c.IsRunning())

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, semerrors.ErrCodeDaemonNotReachable, semerrors.GetCode(err))
}

func TestClient_PingAndStatus(t *testing.T) {
	socketPath, _ := startServer(t, &fakeHandler{})
	c := clientFor(socketPath)
	ctx := context.Background()

	assert.True(t, c.IsRunning())
	require.NoError(t, c.Ping(ctx))

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, StorageAvailable, status.Storage)
}

func TestClient_StateMethods(t *testing.T) {
	h := &fakeHandler{}
	socketPath, _ := startServer(t, h)
	c := clientFor(socketPath)
	ctx := context.Background()

	res, err := c.Suspend(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StateSuspended, res.State)

	res, err = c.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StateIdle, res.State)

	res, err = c.Activity(ctx)
	require.NoError(t, err)
	assert.True(t, res.PausedByActivity)

	h.with(func() {
		assert.Equal(t, []string{MethodSuspend, MethodResume, MethodActivity}, h.calls)
	})
}

func TestClient_PassesParams(t *testing.T) {
	h := &fakeHandler{accepted: true, results: []SearchResult{{Resource: "urn:uuid:1", Path: "/docs/a.txt", Score: 1.5}}}
	socketPath, _ := startServer(t, h)
	c := clientFor(socketPath)
	ctx := context.Background()

	res, err := c.UpdateFolder(ctx, FolderParams{Path: "/docs", Recursive: true, Forced: true})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	h.with(func() {
		assert.Equal(t, FolderParams{Path: "/docs", Recursive: true, Forced: true}, h.folder)
	})

	_, err = c.IndexFile(ctx, FileParams{Path: "/docs/a.txt"})
	require.NoError(t, err)
	h.with(func() { assert.Equal(t, "/docs/a.txt", h.file.Path) })

	all, err := c.UpdateAllFolders(ctx, UpdateAllParams{Forced: true})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Queued)

	hits, err := c.Search(ctx, SearchParams{Query: "invoice"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/docs/a.txt", hits[0].Path)
	h.with(func() { assert.Equal(t, 10, h.search.Limit) })

	m, err := c.Maintain(ctx, MaintainParams{})
	require.NoError(t, err)
	assert.True(t, m.Triggered)

	wb, err := c.Writeback(ctx, WritebackParams{Resource: "urn:uuid:1"})
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:1", wb.Resource)
	assert.Equal(t, []string{"sidecar"}, wb.Written)
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	h := &fakeHandler{}
	socketPath, _ := startServer(t, h)
	c := clientFor(socketPath)
	ctx := context.Background()

	_, err := c.IndexFile(ctx, FileParams{})
	assert.Error(t, err)
	_, err = c.Search(ctx, SearchParams{})
	assert.Error(t, err)
	_, err = c.Writeback(ctx, WritebackParams{})
	assert.Error(t, err)

	h.with(func() { assert.Empty(t, h.calls) })
}

func TestClient_ReturnsRPCError(t *testing.T) {
	// Given: a handler whose storage is unavailable
	h := &fakeHandler{err: semerrors.New(semerrors.ErrCodeIndexUnavailable, "storage unavailable", nil)}
	socketPath, _ := startServer(t, h)
	c := clientFor(socketPath)

	// When: indexing a file
	_, err := c.IndexFile(context.Background(), FileParams{Path: "/docs/a.txt"})

	// Then: the RPC error carries the storage code
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeStorageUnavailable, rpcErr.Code)
	assert.Equal(t, semerrors.ErrCodeIndexUnavailable, rpcErr.Data)
}

func TestClient_NextIDIsUnique(t *testing.T) {
	c := clientFor("/tmp/unused.sock")
	assert.NotEqual(t, c.nextID(), c.nextID())
}
