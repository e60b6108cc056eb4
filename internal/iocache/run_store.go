package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/recap/internal/contract"
	"github.com/huangsam/recap/schema"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names for run tracking.
const (
	runsTable         = "recap_runs"
	chunkResultsTable = "recap_chunk_results"
	migrationsTable   = "recap_schema_migrations"
)

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// driverFor maps a backend to its database/sql driver name.
func driverFor(backend schema.DatabaseBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite", nil
	case schema.MySQLBackend:
		return "mysql", nil
	case schema.PostgreSQLBackend:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported backend: %s", backend)
	}
}

// openDB opens and pings a connection for the backend.
func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	driverName, err := driverFor(backend)
	if err != nil {
		return nil, err
	}
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunDBFilePath()
	}

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		switch backend {
		case schema.SQLiteBackend:
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", connStr, err)
		case schema.MySQLBackend:
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		default:
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=...", err)
		}
	}
	if backend == schema.SQLiteBackend {
		// One connection avoids "database is locked" errors
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database file is accessible."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}
	return db, nil
}

// NewRunStore creates a RunStore with the specified backend.
// NoneBackend returns a store where every operation is a no-op.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (*RunStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}

	if err := createRunTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}

	return &RunStoreImpl{db: db, backend: backend}, nil
}

// createRunTables creates the run tracking tables.
func createRunTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{runsTable, getCreateRunsQuery(backend)},
		{chunkResultsTable, getCreateChunkResultsQuery(backend)},
	}
	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateRunsQuery returns the CREATE TABLE query for recap_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(runsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) PRIMARY KEY,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms BIGINT,
				total_chunks INT NOT NULL DEFAULT 0,
				succeeded INT NOT NULL DEFAULT 0,
				failed INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms BIGINT,
				total_chunks INT NOT NULL DEFAULT 0,
				succeeded INT NOT NULL DEFAULT 0,
				failed INT NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT PRIMARY KEY,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				total_chunks INTEGER NOT NULL DEFAULT 0,
				succeeded INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getCreateChunkResultsQuery returns the CREATE TABLE query for recap_chunk_results.
func getCreateChunkResultsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(chunkResultsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR(36) NOT NULL,
				chunk_id VARCHAR(64) NOT NULL,
				range_start DATETIME(6) NOT NULL,
				range_end DATETIME(6) NOT NULL,
				status VARCHAR(16) NOT NULL,
				elapsed_ms BIGINT NOT NULL,
				entry_count INT NOT NULL,
				error_text TEXT,
				PRIMARY KEY (run_id, chunk_id)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL,
				chunk_id TEXT NOT NULL,
				range_start TIMESTAMPTZ NOT NULL,
				range_end TIMESTAMPTZ NOT NULL,
				status TEXT NOT NULL,
				elapsed_ms BIGINT NOT NULL,
				entry_count INT NOT NULL,
				error_text TEXT,
				PRIMARY KEY (run_id, chunk_id)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id TEXT NOT NULL,
				chunk_id TEXT NOT NULL,
				range_start TEXT NOT NULL,
				range_end TEXT NOT NULL,
				status TEXT NOT NULL,
				elapsed_ms INTEGER NOT NULL,
				entry_count INTEGER NOT NULL,
				error_text TEXT,
				PRIMARY KEY (run_id, chunk_id)
			);
		`, quotedTableName)
	}
}

// disabled reports whether the store skips all writes.
func (rs *RunStoreImpl) disabled() bool {
	return rs.backend == schema.NoneBackend || rs.db == nil
}

// placeholders returns n bind parameters in the dialect of the backend.
func (rs *RunStoreImpl) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		if rs.backend == schema.PostgreSQLBackend {
			out[i] = fmt.Sprintf("$%d", i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}

// BeginRun creates a new run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, configParams map[string]any) (string, error) {
	if rs.disabled() {
		return "", nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config params: %w", err)
	}

	runID := uuid.NewString()
	p := rs.placeholders(3)
	query := fmt.Sprintf(`INSERT INTO %s (run_id, start_time, config_params) VALUES (%s, %s, %s)`,
		quoteTableName(runsTable, rs.backend), p[0], p[1], p[2])
	if _, err := rs.db.Exec(query, runID, formatTime(startTime, rs.backend), string(configJSON)); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// RecordChunk stores the outcome of one chunk.
func (rs *RunStoreImpl) RecordChunk(record schema.ChunkRecord) error {
	if rs.disabled() || record.RunID == "" {
		return nil
	}

	p := rs.placeholders(8)
	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, chunk_id, range_start, range_end, status, elapsed_ms, entry_count, error_text)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)
	`, quoteTableName(chunkResultsTable, rs.backend), p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7])
	args := []any{
		record.RunID, record.ChunkID,
		formatTime(record.RangeStart, rs.backend), formatTime(record.RangeEnd, rs.backend),
		string(record.Status), record.ElapsedMs, record.EntryCount, record.ErrorText,
	}
	if _, err := rs.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert chunk result %s: %w", record.ChunkID, err)
	}
	return nil
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID string, endTime time.Time, meta schema.Metadata) error {
	if rs.disabled() || runID == "" {
		return nil
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)
	p := rs.placeholders(1)
	row := rs.db.QueryRow(fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quotedTableName, p[0]), runID)
	startTime, err := rs.scanTime(row)
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %s: %w", runID, err)
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	p = rs.placeholders(6)
	query := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_chunks = %s, succeeded = %s, failed = %s WHERE run_id = %s`,
		quotedTableName, p[0], p[1], p[2], p[3], p[4], p[5])
	args := []any{formatTime(endTime, rs.backend), durationMs, meta.TotalChunks, meta.Succeeded, meta.Failed, runID}
	if _, err := rs.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.disabled() {
		return status, nil
	}

	quotedRuns := quoteTableName(runsTable, rs.backend)
	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedRuns)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		row := rs.db.QueryRow(fmt.Sprintf("SELECT run_id FROM %s ORDER BY start_time DESC LIMIT 1", quotedRuns))
		if err := row.Scan(&status.LastRunID); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}

		lastRunTime, err := rs.scanTime(rs.db.QueryRow(fmt.Sprintf("SELECT MAX(start_time) FROM %s", quotedRuns)))
		if err != nil {
			return status, fmt.Errorf("failed to get last run time: %w", err)
		}
		status.LastRunTime = lastRunTime

		oldestRunTime, err := rs.scanTime(rs.db.QueryRow(fmt.Sprintf("SELECT MIN(start_time) FROM %s", quotedRuns)))
		if err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldestRunTime
	}

	for _, table := range []string{runsTable, chunkResultsTable} {
		var count int64
		row := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend)))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalChunks = int(status.TableSizes[chunkResultsTable])

	return status, nil
}

// GetAllRuns retrieves all runs from the store, newest first.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, start_time, end_time, run_duration_ms, total_chunks, succeeded, failed, config_params
		FROM %s ORDER BY start_time DESC`, quoteTableName(runsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		switch rs.backend {
		case schema.SQLiteBackend:
			var startTimeStr string
			var endTimeStr *string
			if err := rows.Scan(&record.RunID, &startTimeStr, &endTimeStr, &record.RunDurationMs,
				&record.TotalChunks, &record.Succeeded, &record.Failed, &record.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
			if record.StartTime, err = time.Parse(time.RFC3339Nano, startTimeStr); err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			if endTimeStr != nil {
				endTime, err := time.Parse(time.RFC3339Nano, *endTimeStr)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				record.EndTime = &endTime
			}
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&record.RunID, &record.StartTime, &record.EndTime, &record.RunDurationMs,
				&record.TotalChunks, &record.Succeeded, &record.Failed, &record.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllChunkRecords retrieves every recorded chunk outcome, grouped by run.
func (rs *RunStoreImpl) GetAllChunkRecords() ([]schema.ChunkRecord, error) {
	if rs.disabled() {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, chunk_id, range_start, range_end, status, elapsed_ms, entry_count, error_text
		FROM %s ORDER BY run_id, range_start`, quoteTableName(chunkResultsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ChunkRecord
	for rows.Next() {
		var record schema.ChunkRecord
		var status string
		switch rs.backend {
		case schema.SQLiteBackend:
			var startStr, endStr string
			if err := rows.Scan(&record.RunID, &record.ChunkID, &startStr, &endStr, &status,
				&record.ElapsedMs, &record.EntryCount, &record.ErrorText); err != nil {
				return nil, fmt.Errorf("failed to scan chunk result: %w", err)
			}
			if record.RangeStart, err = time.Parse(time.RFC3339Nano, startStr); err != nil {
				return nil, fmt.Errorf("failed to parse range_start: %w", err)
			}
			if record.RangeEnd, err = time.Parse(time.RFC3339Nano, endStr); err != nil {
				return nil, fmt.Errorf("failed to parse range_end: %w", err)
			}
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&record.RunID, &record.ChunkID, &record.RangeStart, &record.RangeEnd, &status,
				&record.ElapsedMs, &record.EntryCount, &record.ErrorText); err != nil {
				return nil, fmt.Errorf("failed to scan chunk result: %w", err)
			}
		}
		record.Status = schema.ChunkStatus(status)
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk results: %w", err)
	}
	return results, nil
}

// scanTime reads a single time column, which SQLite stores as text.
func (rs *RunStoreImpl) scanTime(row *sql.Row) (time.Time, error) {
	if rs.backend == schema.SQLiteBackend {
		var s string
		if err := row.Scan(&s); err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	var t time.Time
	err := row.Scan(&t)
	return t, err
}

// sqliteTimeFormat is fixed-width so that text columns sort chronologically.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(sqliteTimeFormat)
	default:
		return t
	}
}

// quoteTableName quotes a table name for the backend dialect.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("\"%s\"", name)
	}
}
