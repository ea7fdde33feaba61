package diagctx

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable Store. Contexts are serialized as JSON rows;
// the per-case locks live in memory, so a single process owns the database.
//
// Thread-safe: the lock map is guarded by mu, each case by its own mutex.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLiteStore opens (or creates) the case database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open case database: %w", err)
	}
	// The per-case mutexes already serialize writers; a single connection
	// avoids SQLITE_BUSY from the driver side.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("case store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnostic_contexts (
		case_id    TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contexts_updated ON diagnostic_contexts(updated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure context schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) lockFor(caseID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[caseID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[caseID] = l
	}
	return l
}

// load reads the context row. Returns nil when the case has no row yet.
func (s *SQLiteStore) load(caseID string) (*Context, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM diagnostic_contexts WHERE case_id = ?`, caseID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}

	var ctx Context
	if err := json.Unmarshal([]byte(payload), &ctx); err != nil {
		return nil, fmt.Errorf("failed to decode case %s: %w", caseID, err)
	}
	return &ctx, nil
}

func (s *SQLiteStore) save(ctx *Context) error {
	payload, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to encode case %s: %w", ctx.CaseID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO diagnostic_contexts (case_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		ctx.CaseID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", ctx.CaseID, err)
	}
	return nil
}

// Mutate implements Store.
func (s *SQLiteStore) Mutate(caseID string, fn func(*Context)) *Context {
	l := s.lockFor(caseID)
	l.Lock()
	defer l.Unlock()

	ctx, err := s.load(caseID)
	if err != nil {
		s.logger.Error("case load failed, starting fresh", zap.String("case", caseID), zap.Error(err))
		ctx = nil
	}
	if ctx == nil {
		ctx = NewContext(caseID)
	}

	fn(ctx)

	if err := s.save(ctx); err != nil {
		s.logger.Error("case save failed", zap.String("case", caseID), zap.Error(err))
	}
	return ctx.Clone()
}

// Apply implements Store.
func (s *SQLiteStore) Apply(caseID string, fn func(*Context)) bool {
	l := s.lockFor(caseID)
	l.Lock()
	defer l.Unlock()

	ctx, err := s.load(caseID)
	if err != nil || ctx == nil {
		return false
	}

	fn(ctx)

	if err := s.save(ctx); err != nil {
		s.logger.Error("case save failed", zap.String("case", caseID), zap.Error(err))
		return false
	}
	return true
}

// Peek implements Store.
func (s *SQLiteStore) Peek(caseID string) (*Context, bool) {
	l := s.lockFor(caseID)
	l.Lock()
	defer l.Unlock()

	ctx, err := s.load(caseID)
	if err != nil || ctx == nil {
		return nil, false
	}
	return ctx, true
}

// Delete implements Store.
func (s *SQLiteStore) Delete(caseID string) {
	l := s.lockFor(caseID)
	l.Lock()
	defer l.Unlock()

	if _, err := s.db.Exec(`DELETE FROM diagnostic_contexts WHERE case_id = ?`, caseID); err != nil {
		s.logger.Error("case delete failed", zap.String("case", caseID), zap.Error(err))
	}
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
