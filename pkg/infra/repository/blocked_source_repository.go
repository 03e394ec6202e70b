package repository

import (
	"context"
	"errors"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/blocklist"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type blockedSourceRepository struct {
	db *gorm.DB
}

func NewBlockedSourceRepository(db *gorm.DB) blocklist.Repository {
	return &blockedSourceRepository{
		db: db,
	}
}

func (r *blockedSourceRepository) Upsert(ctx context.Context, entry *blocklist.BlockedSource) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	// re-blocking a source revives its row
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"blocked_at", "expires_at", "reason", "created_by", "manual", "threat_score",
			"ledger_synced", "tx_ref", "sync_attempts", "removed_at", "updated_at",
		}),
	}).Create(entry).Error
}

func (r *blockedSourceRepository) Get(ctx context.Context, sourceHash string) (*blocklist.BlockedSource, error) {
	var entry blocklist.BlockedSource
	if err := r.db.WithContext(ctx).
		Where("source_hash = ?", sourceHash).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("blocked_source", sourceHash)
		}
		return nil, err
	}
	return &entry, nil
}

func (r *blockedSourceRepository) List(ctx context.Context, filter blocklist.Filter) ([]blocklist.BlockedSource, error) {
	query := r.db.WithContext(ctx).Model(&blocklist.BlockedSource{})
	if filter.ActiveOnly {
		query = query.Where("removed_at IS NULL AND (expires_at IS NULL OR expires_at > ?)", time.Now())
	}
	if filter.Manual != nil {
		query = query.Where("manual = ?", *filter.Manual)
	}
	if filter.PendingOnly {
		query = query.Where("ledger_synced = ?", false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []blocklist.BlockedSource
	if err := query.Order("blocked_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *blockedSourceRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]blocklist.BlockedSource, error) {
	var entries []blocklist.BlockedSource
	if err := r.db.WithContext(ctx).
		Where("manual = ? AND removed_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?", false, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *blockedSourceRepository) ListPendingSync(ctx context.Context, limit int) ([]blocklist.BlockedSource, error) {
	var entries []blocklist.BlockedSource
	if err := r.db.WithContext(ctx).
		Where("ledger_synced = ? AND removed_at IS NULL", false).
		Order("blocked_at ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *blockedSourceRepository) MarkSynced(ctx context.Context, sourceHash string, txRef string) error {
	return r.db.WithContext(ctx).
		Model(&blocklist.BlockedSource{}).
		Where("source_hash = ?", sourceHash).
		Updates(map[string]interface{}{
			"ledger_synced": true,
			"tx_ref":        txRef,
			"updated_at":    time.Now(),
		}).Error
}

func (r *blockedSourceRepository) IncrementSyncAttempts(ctx context.Context, sourceHash string) error {
	return r.db.WithContext(ctx).
		Model(&blocklist.BlockedSource{}).
		Where("source_hash = ?", sourceHash).
		UpdateColumn("sync_attempts", gorm.Expr("sync_attempts + 1")).Error
}

func (r *blockedSourceRepository) MarkRemoved(ctx context.Context, sourceHash string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&blocklist.BlockedSource{}).
		Where("source_hash = ? AND removed_at IS NULL", sourceHash).
		Updates(map[string]interface{}{
			"removed_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *blockedSourceRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&blocklist.BlockedSource{}).
		Where("removed_at IS NULL AND (expires_at IS NULL OR expires_at > ?)", now).
		Count(&n).Error
	return n, err
}
