package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

const activityTable = "sys_activity_log"

// ActivityEntry is one row of sys_activity_log.
type ActivityEntry struct {
	ID                id.ID           `db:"id"`
	Action            string          `db:"action"`
	EntityType        string          `db:"entity_type"`
	EntityID          string          `db:"entity_id"`
	UserID            string          `db:"user_id"`
	IPAddress         string          `db:"ip_address"`
	RequestID         string          `db:"request_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// ActivityRepo writes activity entries, compressing large change sets.
// It implements audit.Logger for the synchronous delivery mode.
type ActivityRepo struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Logger = (*ActivityRepo)(nil)

// NewActivityRepo creates an activity repository. Change sets above
// 4KB are stored zstd-compressed.
func NewActivityRepo(txManager *TxManager) (*ActivityRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &ActivityRepo{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
	}, nil
}

// LogActivity inserts a.
func (r *ActivityRepo) LogActivity(ctx context.Context, a audit.Activity) error {
	entry, err := r.Entry(a)
	if err != nil {
		return err
	}
	return r.Insert(ctx, entry)
}

// Entry converts a into a row, compressing the change set when large.
func (r *ActivityRepo) Entry(a audit.Activity) (ActivityEntry, error) {
	changes, err := json.Marshal(a.Changes)
	if err != nil {
		return ActivityEntry{}, fmt.Errorf("marshal changes: %w", err)
	}
	entry := ActivityEntry{
		ID:              id.New(),
		Action:          string(a.Action),
		EntityType:      a.Entity,
		EntityID:        a.EntityID,
		UserID:          a.ActorUserID,
		IPAddress:       a.IPAddress,
		RequestID:       a.RequestID,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       a.OccurredAt.UTC(),
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(changes) > r.compressThreshold {
		entry.ChangesCompressed = r.encoder.EncodeAll(changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

// Insert writes entry.
func (r *ActivityRepo) Insert(ctx context.Context, entry ActivityEntry) error {
	sql := `
		INSERT INTO sys_activity_log (
			id, action, entity_type, entity_id, user_id, ip_address, request_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.UserID,
		entry.IPAddress, entry.RequestID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	return MapError("insert activity", err)
}

// History returns the latest entries for an entity, newest first.
func (r *ActivityRepo) History(ctx context.Context, entityType, entityID string, limit int) ([]ActivityEntry, error) {
	sql := `
		SELECT id, action, entity_type, entity_id, user_id, ip_address, request_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM ` + activityTable + `
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(
			&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.UserID, &e.IPAddress, &e.RequestID,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := r.decompress(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *ActivityRepo) decompress(e *ActivityEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := r.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	return nil
}
