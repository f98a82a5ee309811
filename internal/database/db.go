package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBFileName is the SQLite file created inside the data directory
const DBFileName = "leadpulse.db"

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (or creates) the record store in dataDir
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite serializes writers; a small pool keeps busy waits short
	pool := NewConnectionPool(db, 8, 4, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized",
		"path", dbPath,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			status TEXT,
			payload TEXT NOT NULL, -- JSON record
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS score_snapshots (
			id TEXT PRIMARY KEY,
			record_id TEXT NOT NULL,
			config_version TEXT NOT NULL,
			composite INTEGER NOT NULL,
			probability REAL NOT NULL,
			risk_tier TEXT NOT NULL,
			action TEXT NOT NULL,
			payload TEXT NOT NULL, -- JSON score result
			created_at DATETIME NOT NULL,
			FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS queue_rankings (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			rank INTEGER NOT NULL,
			record_id TEXT NOT NULL,
			composite INTEGER NOT NULL,
			risk_tier TEXT NOT NULL,
			action TEXT NOT NULL,
			config_version TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE(kind, rank)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind, archived)`,
		`CREATE INDEX IF NOT EXISTS idx_score_snapshots_record ON score_snapshots(record_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_rankings_kind ON queue_rankings(kind, rank)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		stmtUpsertRecord: `INSERT INTO records (id, kind, status, payload, archived, created_at, updated_at)
			VALUES (?, ?, ?, ?, FALSE, ?, ?) ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			payload = excluded.payload,
			archived = FALSE,
			updated_at = excluded.updated_at`,

		stmtGetRecord: `SELECT payload, archived FROM records WHERE id = ?`,

		stmtInsertSnapshot: `INSERT INTO score_snapshots (
			id, record_id, config_version, composite, probability, risk_tier, action, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		stmtLatestSnapshot: `SELECT id, record_id, config_version, composite, probability, risk_tier, action, payload, created_at
			FROM score_snapshots WHERE record_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,

		stmtInsertRanking: `INSERT INTO queue_rankings (
			id, kind, rank, record_id, composite, risk_tier, action, config_version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		stmtListRankings: `SELECT id, kind, rank, record_id, composite, risk_tier, action, config_version, created_at
			FROM queue_rankings WHERE kind = ? ORDER BY rank ASC LIMIT ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
