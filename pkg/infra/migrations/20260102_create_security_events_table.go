package migrations

import (
	"github.com/NeuralTrust/ThreatGate/pkg/infra/database"
	"gorm.io/gorm"
)

func init() {
	database.RegisterMigration(database.Migration{
		ID:   "20260102_create_security_events_table",
		Name: "Create security_events table",

		Up: func(db *gorm.DB) error {
			if err := db.Exec(`
				CREATE TABLE IF NOT EXISTS security_events (
					id                 UUID PRIMARY KEY,
					sequence           BIGINT NOT NULL,
					instance_id        TEXT NOT NULL,
					arrived_at         TIMESTAMPTZ NOT NULL,
					source_hash        TEXT NOT NULL,
					endpoint           TEXT NOT NULL DEFAULT '',
					method             TEXT NOT NULL DEFAULT '',
					user_agent         TEXT NOT NULL DEFAULT '',
					rate_score         INTEGER NOT NULL DEFAULT 0,
					pattern_score      INTEGER NOT NULL DEFAULT 0,
					session_score      INTEGER NOT NULL DEFAULT 0,
					entropy_score      INTEGER NOT NULL DEFAULT 0,
					auth_failure_score INTEGER NOT NULL DEFAULT 0,
					signature_score    INTEGER NOT NULL DEFAULT 0,
					total_score        INTEGER NOT NULL DEFAULT 0,
					tier               TEXT NOT NULL DEFAULT '',
					action             TEXT NOT NULL,
					reason             TEXT NOT NULL DEFAULT '',
					country            TEXT NOT NULL DEFAULT '',
					created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`).Error; err != nil {
				return err
			}

			for _, stmt := range []string{
				`CREATE INDEX IF NOT EXISTS idx_security_events_arrived_at ON security_events (arrived_at);`,
				`CREATE INDEX IF NOT EXISTS idx_security_events_source_hash ON security_events (source_hash);`,
				`CREATE INDEX IF NOT EXISTS idx_security_events_action ON security_events (action);`,
				`CREATE INDEX IF NOT EXISTS idx_security_events_instance_seq ON security_events (instance_id, sequence);`,
			} {
				if err := db.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return nil
		},

		Down: func(db *gorm.DB) error {
			return db.Exec(`DROP TABLE IF EXISTS security_events;`).Error
		},
	})
}
