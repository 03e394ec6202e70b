package repository

import (
	"context"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/securityevent"
	"gorm.io/gorm"
)

const defaultEventsLimit = 100

type securityEventRepository struct {
	db *gorm.DB
}

func NewSecurityEventRepository(db *gorm.DB) securityevent.Repository {
	return &securityEventRepository{
		db: db,
	}
}

func (r *securityEventRepository) Save(ctx context.Context, record *securityevent.Record) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *securityEventRepository) Recent(ctx context.Context, query securityevent.Query) ([]securityevent.Record, error) {
	q := r.db.WithContext(ctx).Model(&securityevent.Record{})
	if query.SourceHash != "" {
		q = q.Where("source_hash = ?", query.SourceHash)
	}
	if query.Action != "" {
		q = q.Where("action = ?", query.Action)
	}
	if !query.Since.IsZero() {
		q = q.Where("arrived_at >= ?", query.Since)
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}

	var records []securityevent.Record
	if err := q.Order("arrived_at DESC, sequence DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *securityEventRepository) CountByAction(ctx context.Context, since time.Time) (map[string]int64, error) {
	type row struct {
		Action string
		Total  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&securityevent.Record{}).
		Select("action, COUNT(*) AS total").
		Where("arrived_at >= ?", since).
		Group("action").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Action] = r.Total
	}
	return out, nil
}

func (r *securityEventRepository) AverageScore(ctx context.Context, since time.Time) (float64, error) {
	var avg *float64
	if err := r.db.WithContext(ctx).
		Model(&securityevent.Record{}).
		Select("AVG(total_score)").
		Where("arrived_at >= ?", since).
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *securityEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("arrived_at < ?", before).
		Delete(&securityevent.Record{})
	return result.RowsAffected, result.Error
}
