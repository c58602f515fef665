// Package requestlog persists an immutable record of every handled request so
// it can be replayed by id.
package requestlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/posenv/internal/database"
	"github.com/aristath/posenv/internal/domain"
)

// Record is one stored request and the response that was returned for it.
type Record struct {
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
	Method       string    `json:"method"`
	Cached       bool      `json:"cached"`
	DurationMs   int64     `json:"duration_ms"`
	ServerStatus string    `json:"server_status"`
	CurlCommand  string    `json:"curl_command,omitempty"`
	RequestData  any       `json:"request_data"`
	ResponseData any       `json:"response_data"`
	ErrorStack   string    `json:"error_stack"`
}

// payload is the msgpack-encoded part of a row.
type payload struct {
	ServerStatus string `msgpack:"server_status"`
	CurlCommand  string `msgpack:"curl_command"`
	RequestData  any    `msgpack:"request_data"`
	ResponseData any    `msgpack:"response_data"`
	ErrorStack   string `msgpack:"error_stack"`
}

// Store saves and loads request records.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context, requestID string) (*Record, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteStore keeps records in the request_log table.
type SQLiteStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteStore creates a store on a migrated "requests" database.
func NewSQLiteStore(db *database.DB, log zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		log: log.With().Str("component", "request_log").Logger(),
	}
}

// normalize reduces typed payloads to the generic JSON shape a client sees,
// so stored records decode without knowing section payload types.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save writes a record. Request ids are unique; saving an id twice fails.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	reqData, err := normalize(rec.RequestData)
	if err != nil {
		return fmt.Errorf("failed to normalize request data: %w", err)
	}
	respData, err := normalize(rec.ResponseData)
	if err != nil {
		return fmt.Errorf("failed to normalize response data: %w", err)
	}

	blob, err := msgpack.Marshal(&payload{
		ServerStatus: rec.ServerStatus,
		CurlCommand:  rec.CurlCommand,
		RequestData:  reqData,
		ResponseData: respData,
		ErrorStack:   rec.ErrorStack,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request record: %w", err)
	}

	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO request_log (request_id, created_at, method, cached, duration_ms, has_error, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.Timestamp.UnixMilli(),
		rec.Method,
		boolToInt(rec.Cached),
		rec.DurationMs,
		boolToInt(rec.ErrorStack != ""),
		blob,
	)
	if err != nil {
		return fmt.Errorf("failed to store request %s: %w", rec.RequestID, err)
	}

	s.log.Debug().
		Str("request_id", rec.RequestID).
		Bool("cached", rec.Cached).
		Int("payload_bytes", len(blob)).
		Msg("Request stored")
	return nil
}

// Load returns a stored record, or domain.ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, requestID string) (*Record, error) {
	rec := &Record{RequestID: requestID}
	var (
		createdAt int64
		cached    int
		hasError  int
		blob      []byte
	)
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT created_at, method, cached, duration_ms, has_error, payload
		FROM request_log WHERE request_id = ?`, requestID,
	).Scan(&createdAt, &rec.Method, &cached, &rec.DurationMs, &hasError, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", requestID, err)
	}

	var p payload
	if err := msgpack.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("failed to decode request %s: %w", requestID, err)
	}

	rec.Timestamp = time.UnixMilli(createdAt).UTC()
	rec.Cached = cached != 0
	rec.ServerStatus = p.ServerStatus
	rec.CurlCommand = p.CurlCommand
	rec.RequestData = p.RequestData
	rec.ResponseData = p.ResponseData
	rec.ErrorStack = p.ErrorStack
	return rec, nil
}

// Purge deletes records created before the given instant.
func (s *SQLiteStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.Conn().ExecContext(ctx,
		"DELETE FROM request_log WHERE created_at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge request log: %w", err)
	}
	return result.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
