package migrations

import (
	"github.com/NeuralTrust/ThreatGate/pkg/infra/database"
	"gorm.io/gorm"
)

func init() {
	database.RegisterMigration(database.Migration{
		ID:   "20260101_create_blocked_sources_table",
		Name: "Create blocked_sources table",

		Up: func(db *gorm.DB) error {
			if err := db.Exec(`
				CREATE TABLE IF NOT EXISTS blocked_sources (
					id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					source_hash   TEXT NOT NULL UNIQUE,
					blocked_at    TIMESTAMPTZ NOT NULL,
					expires_at    TIMESTAMPTZ,
					reason        TEXT NOT NULL DEFAULT '',
					created_by    TEXT NOT NULL DEFAULT 'system',
					manual        BOOLEAN NOT NULL DEFAULT FALSE,
					threat_score  INTEGER NOT NULL DEFAULT 0,
					ledger_synced BOOLEAN NOT NULL DEFAULT FALSE,
					tx_ref        TEXT NOT NULL DEFAULT '',
					sync_attempts INTEGER NOT NULL DEFAULT 0,
					removed_at    TIMESTAMPTZ,
					created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT chk_blocked_sources_auto_expiry CHECK (manual OR expires_at IS NOT NULL)
				);
			`).Error; err != nil {
				return err
			}

			// sweeper scans active automatic entries by expiry
			if err := db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_blocked_sources_sweep
				ON blocked_sources (expires_at)
				WHERE removed_at IS NULL AND manual = FALSE;
			`).Error; err != nil {
				return err
			}

			return db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_blocked_sources_pending
				ON blocked_sources (updated_at)
				WHERE ledger_synced = FALSE;
			`).Error
		},

		Down: func(db *gorm.DB) error {
			return db.Exec(`DROP TABLE IF EXISTS blocked_sources;`).Error
		},
	})
}
