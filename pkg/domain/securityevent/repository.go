package securityevent

import (
	"context"
	"time"
)

type Query struct {
	SourceHash string
	Action     string
	Since      time.Time
	Limit      int
}

type Stats struct {
	Window         string           `json:"window"`
	Total          int64            `json:"total_requests"`
	ByAction       map[string]int64 `json:"by_action"`
	Blocked        int64            `json:"blocked_requests"`
	Challenged     int64            `json:"challenged_requests"`
	AverageScore   float64          `json:"average_score"`
	ActiveBlocks   int64            `json:"active_blocked_sources"`
	AttackPatterns int64            `json:"attack_patterns"`
}

//go:generate mockery --name=Repository --dir=. --output=./mocks --filename=repository_mock.go --case=underscore --with-expecter
type Repository interface {
	Save(ctx context.Context, record *Record) error
	Recent(ctx context.Context, query Query) ([]Record, error)
	CountByAction(ctx context.Context, since time.Time) (map[string]int64, error)
	AverageScore(ctx context.Context, since time.Time) (float64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
