package database

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// migrationsLockID keys the advisory lock held while migrations run, so
// instances booting together apply each migration once.
const migrationsLockID = 727001

type Migration struct {
	ID   string
	Name string
	Up   func(db *gorm.DB) error
	Down func(db *gorm.DB) error
}

var migrationsRegistry = make(map[string]Migration)

func RegisterMigration(m Migration) {
	if _, exists := migrationsRegistry[m.ID]; exists {
		panic(fmt.Sprintf("migration with ID %s already registered", m.ID))
	}
	migrationsRegistry[m.ID] = m
}

func registeredIDs() []string {
	ids := make([]string, 0, len(migrationsRegistry))
	for id := range migrationsRegistry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type MigrationsManager struct {
	db *gorm.DB
}

func NewMigrationsManager(db *gorm.DB) *MigrationsManager {
	return &MigrationsManager{db: db}
}

func ensureMigrationsTable(tx *gorm.DB) error {
	return tx.Exec(`
CREATE TABLE IF NOT EXISTS public.threatgate_migrations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`).Error
}

func appliedMigrations(tx *gorm.DB) (map[string]struct{}, error) {
	var ids []string
	if err := tx.Raw("SELECT id FROM public.threatgate_migrations").Scan(&ids).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		applied[id] = struct{}{}
	}
	return applied, nil
}

// Pending lists registered migrations not yet applied, in apply order.
func (m *MigrationsManager) Pending() ([]Migration, error) {
	if err := ensureMigrationsTable(m.db); err != nil {
		return nil, fmt.Errorf("ensure migrations table: %w", err)
	}
	applied, err := appliedMigrations(m.db)
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	var pending []Migration
	for _, id := range registeredIDs() {
		if _, ok := applied[id]; !ok {
			pending = append(pending, migrationsRegistry[id])
		}
	}
	return pending, nil
}

// ApplyPending runs every pending migration, each in its own transaction
// together with its version row.
func (m *MigrationsManager) ApplyPending() error {
	if err := ensureMigrationsTable(m.db); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}
	for _, id := range registeredIDs() {
		mig := migrationsRegistry[id]
		if mig.Up == nil {
			return fmt.Errorf("migration %s has no Up function", id)
		}
		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationsLockID).Error; err != nil {
				return err
			}
			applied, err := appliedMigrations(tx)
			if err != nil {
				return err
			}
			if _, ok := applied[id]; ok {
				return nil
			}
			if err := mig.Up(tx); err != nil {
				return err
			}
			return tx.Exec(
				"INSERT INTO public.threatgate_migrations (id, name, applied_at) VALUES (?, ?, ?)",
				mig.ID, mig.Name, time.Now(),
			).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s (%s): %w", mig.ID, mig.Name, err)
		}
	}
	return nil
}
