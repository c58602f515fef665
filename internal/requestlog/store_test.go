package requestlog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/requestlog"
	testingpkg "github.com/aristath/posenv/internal/testing"
)

func newStore(t *testing.T) *requestlog.SQLiteStore {
	t.Helper()
	return requestlog.NewSQLiteStore(testingpkg.NewTestDB(t, "requests"), zerolog.Nop())
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rec := &requestlog.Record{
		RequestID:    "req-1",
		Timestamp:    ts,
		Method:       "GET",
		Cached:       true,
		DurationMs:   12,
		ServerStatus: "running",
		CurlCommand:  "curl -X GET 'http://localhost/pos_env?section=all'",
		RequestData: map[string]any{
			"method":       "GET",
			"query_params": map[string]string{"section": "all"},
		},
		ResponseData: domain.OrchestrationResult{
			"futures": {Status: domain.SectionOK, Data: map[string]any{"price": decimal.RequireFromString("5025.5")}},
		},
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Load(ctx, "req-1")
	require.NoError(t, err)

	assert.Equal(t, "req-1", got.RequestID)
	assert.True(t, got.Timestamp.Equal(ts))
	assert.Equal(t, "GET", got.Method)
	assert.True(t, got.Cached)
	assert.Equal(t, int64(12), got.DurationMs)
	assert.Equal(t, "running", got.ServerStatus)
	assert.Equal(t, rec.CurlCommand, got.CurlCommand)
	assert.Empty(t, got.ErrorStack)

	reqData, ok := got.RequestData.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "GET", reqData["method"])

	respData, ok := got.ResponseData.(map[string]any)
	require.True(t, ok)
	futures := respData["futures"].(map[string]any)
	assert.Equal(t, "ok", futures["status"])
	// decimals are stored the way clients see them
	assert.Equal(t, "5025.5", futures["data"].(map[string]any)["price"])
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	rec := &requestlog.Record{RequestID: "dup", Timestamp: time.Now(), Method: "POST"}

	require.NoError(t, store.Save(ctx, rec))
	assert.Error(t, store.Save(ctx, rec))
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	_, err := newStore(t).Load(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteStore_Purge(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &requestlog.Record{RequestID: "old", Timestamp: now.Add(-48 * time.Hour), Method: "GET"}))
	require.NoError(t, store.Save(ctx, &requestlog.Record{RequestID: "new", Timestamp: now, Method: "GET", ErrorStack: "boom"}))

	deleted, err := store.Purge(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Load(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := store.Load(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "boom", got.ErrorStack)
}
