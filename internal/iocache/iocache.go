// Package iocache holds the unit result cache and the run history store.
package iocache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"
)

// StoreManager owns the process-wide cache and run store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	cache        *MemoryStore
	runs         contract.RunStore
	stopSweep    context.CancelFunc
}

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// GetCache returns the shared unit result cache.
func (mgr *StoreManager) GetCache() *MemoryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.cache
}

// GetRunStore returns the run history store.
func (mgr *StoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}

// StoreOptions configures InitStores.
type StoreOptions struct {
	Memory        MemoryOptions
	SweepInterval time.Duration // 0 = no background sweeper
	RunBackend    schema.DatabaseBackend
	RunConnStr    string
}

// InitStores initializes the global manager. Later calls are no-ops.
func InitStores(opts StoreOptions) error {
	var initErr error

	initOnce.Do(func() {
		backend := opts.RunBackend
		if backend == "" {
			backend = schema.NoneBackend
		}
		runs, err := NewRunStore(backend, opts.RunConnStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize run store: %w", err)
			return
		}

		cache := NewMemoryStore(opts.Memory)
		sweepCtx, cancel := context.WithCancel(context.Background())
		if opts.SweepInterval > 0 {
			cache.StartSweeper(sweepCtx, opts.SweepInterval)
		}

		Manager.Lock()
		defer Manager.Unlock()
		Manager.cache = cache
		Manager.runs = runs
		Manager.stopSweep = cancel
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() {
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.stopSweep != nil {
			Manager.stopSweep()
		}
		if Manager.runs != nil {
			_ = Manager.runs.Close()
		}
	})
}

// ClearRuns clears the run history for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the run tables and the
// migration version table.
// For NoneBackend, it does nothing.
func ClearRuns(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		driverName, _ := driverFor(backend)
		for _, table := range []string{chunkResultsTable, runsTable, migrationsTable} {
			if err := dropSQLTable(driverName, connStr, quoteTableName(table, backend)); err != nil {
				return err
			}
		}
		return nil

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported run backend for clearing: %s", backend)
	}
}

// dropSQLTable connects to the SQL database and drops the table if it exists.
func dropSQLTable(driverName, connStr, quotedTable string) error {
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", quotedTable, err)
	}
	return nil
}
