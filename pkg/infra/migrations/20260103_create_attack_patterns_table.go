package migrations

import (
	"github.com/NeuralTrust/ThreatGate/pkg/infra/database"
	"gorm.io/gorm"
)

func init() {
	database.RegisterMigration(database.Migration{
		ID:   "20260103_create_attack_patterns_table",
		Name: "Create attack_patterns table",

		Up: func(db *gorm.DB) error {
			if err := db.Exec(`
				CREATE TABLE IF NOT EXISTS attack_patterns (
					id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					pattern_hash      TEXT NOT NULL,
					window_bucket     BIGINT NOT NULL,
					endpoints         TEXT[] NOT NULL DEFAULT '{}',
					user_agent_class  TEXT NOT NULL DEFAULT '',
					user_agent_digest TEXT NOT NULL DEFAULT '',
					cadence           TEXT NOT NULL DEFAULT '',
					severity          INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 10),
					source_count      INTEGER NOT NULL DEFAULT 0,
					request_count     BIGINT NOT NULL DEFAULT 0,
					detected_at       TIMESTAMPTZ NOT NULL,
					reported_by       TEXT NOT NULL DEFAULT '',
					pattern           TEXT NOT NULL,
					ledger_synced     BOOLEAN NOT NULL DEFAULT FALSE,
					ledger_ref        TEXT NOT NULL DEFAULT '',
					created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (pattern_hash, window_bucket)
				);
			`).Error; err != nil {
				return err
			}

			return db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_attack_patterns_detected_at
				ON attack_patterns (detected_at DESC);
			`).Error
		},

		Down: func(db *gorm.DB) error {
			return db.Exec(`DROP TABLE IF EXISTS attack_patterns;`).Error
		},
	})
}
