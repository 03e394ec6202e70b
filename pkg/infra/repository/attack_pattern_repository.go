package repository

import (
	"context"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/signature"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type attackPatternRepository struct {
	db *gorm.DB
}

func NewAttackPatternRepository(db *gorm.DB) signature.Repository {
	return &attackPatternRepository{
		db: db,
	}
}

func (r *attackPatternRepository) Save(ctx context.Context, pattern *signature.AttackPattern) error {
	if pattern.ID == uuid.Nil {
		pattern.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pattern_hash"}, {Name: "window_bucket"}},
		DoNothing: true,
	}).Create(pattern).Error
}

func (r *attackPatternRepository) List(ctx context.Context, limit int) ([]signature.AttackPattern, error) {
	var patterns []signature.AttackPattern
	q := r.db.WithContext(ctx).Order("detected_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&patterns).Error; err != nil {
		return nil, err
	}
	return patterns, nil
}

func (r *attackPatternRepository) ListPendingSync(ctx context.Context, limit int) ([]signature.AttackPattern, error) {
	var patterns []signature.AttackPattern
	if err := r.db.WithContext(ctx).
		Where("ledger_synced = ?", false).
		Order("detected_at ASC").
		Limit(limit).
		Find(&patterns).Error; err != nil {
		return nil, err
	}
	return patterns, nil
}

func (r *attackPatternRepository) MarkSynced(ctx context.Context, id uuid.UUID, ref string) error {
	return r.db.WithContext(ctx).
		Model(&signature.AttackPattern{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ledger_synced": true,
			"ledger_ref":    ref,
			"updated_at":    time.Now(),
		}).Error
}

func (r *attackPatternRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&signature.AttackPattern{}).Count(&n).Error
	return n, err
}
