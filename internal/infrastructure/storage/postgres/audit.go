package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionRecord AuditAction = "record"
	AuditActionMerge  AuditAction = "merge"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry represents a single audit log entry. EntityRef holds the
// business key of the entity (product or party name, movement id).
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityRef         string          `db:"entity_ref"`
	Action            AuditAction     `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService provides audit logging functionality.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes, default 10KB
}

// NewAuditService creates a new audit service. txManager may be nil, in
// which case the per-request manager is taken from context.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

func (s *AuditService) getTxManager(ctx context.Context) *TxManager {
	if s.txManager != nil {
		return s.txManager
	}
	return MustGetTxManager(ctx)
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = appctx.GetUserID(ctx)
	}

	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// Compress large changes
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		compressed := s.encoder.EncodeAll(entry.Changes, nil)
		entry.ChangesCompressed = compressed
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_ref, action, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := s.getTxManager(ctx).GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityRef, entry.Action,
		entry.UserID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.CreatedAt,
	)

	return err
}

// LogChange is a convenience method for logging entity changes.
func (s *AuditService) LogChange(
	ctx context.Context,
	entityType string,
	entityRef string,
	action AuditAction,
	changes map[string]any,
) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityRef:  entityRef,
		Action:     action,
		Changes:    changesJSON,
	})
}

// GetEntityHistory retrieves audit history for an entity.
func (s *AuditService) GetEntityHistory(
	ctx context.Context,
	entityType string,
	entityRef string,
	limit int,
) ([]AuditEntry, error) {
	sql := `
		SELECT id, entity_type, entity_ref, action, user_id,
			   changes, changes_compressed, compression_algo,
			   created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_ref = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.getTxManager(ctx).GetQuerier(ctx).Query(ctx, sql, entityType, entityRef, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityRef, &e.Action, &e.UserID,
			&e.Changes, &e.ChangesCompressed, &e.CompressionAlgo,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			e.Changes = decompressed
			e.ChangesCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Diff calculates the difference between old and new entity states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !equal(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}

func equal(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
