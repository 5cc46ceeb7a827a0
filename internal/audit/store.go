// Package audit persists the append-only trail of compliance decisions.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spendguard/spendguard/internal/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	entry_id INTEGER PRIMARY KEY,
	document_ref TEXT NOT NULL,
	status TEXT NOT NULL,
	reasons TEXT NOT NULL,
	policy_version TEXT NOT NULL,
	input_digest TEXT NOT NULL,
	evaluated_at TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_entries(status);
CREATE INDEX IF NOT EXISTS idx_audit_document ON audit_entries(document_ref);
CREATE INDEX IF NOT EXISTS idx_audit_recorded ON audit_entries(recorded_at);
`

// Store manages the SQLite audit log. Appends are serialized by a single
// writer lock so entry ids stay strictly increasing with no gaps or
// duplicates even under concurrent callers.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// NewStore opens (or creates) the SQLite audit database.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("setting WAL mode: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("creating schema: %w (also: close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record appends one audit entry and returns it with its assigned id. The
// id assignment and the row insert are a single transaction: a failed write
// surfaces an error and never advances the sequence, so a later retry
// reuses the same id. Once Record returns the entry is durable.
func (s *Store) Record(documentRef string, verdict policy.Verdict, inputDigest string) (Entry, error) {
	reasons, err := json.Marshal(verdict.Reasons)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding reasons: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return Entry{}, fmt.Errorf("beginning audit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRow("SELECT COALESCE(MAX(entry_id), 0) + 1 FROM audit_entries").Scan(&next); err != nil {
		return Entry{}, fmt.Errorf("assigning entry id: %w", err)
	}

	entry := Entry{
		EntryID:       next,
		DocumentRef:   documentRef,
		Status:        verdict.Status,
		Reasons:       verdict.Reasons,
		PolicyVersion: verdict.PolicyVersion,
		InputDigest:   inputDigest,
		EvaluatedAt:   verdict.EvaluatedAt.Format(time.RFC3339),
		RecordedAt:    s.now().Format(time.RFC3339),
	}

	_, err = tx.Exec(
		`INSERT INTO audit_entries (entry_id, document_ref, status, reasons, policy_version, input_digest, evaluated_at, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryID, entry.DocumentRef, string(entry.Status), string(reasons),
		entry.PolicyVersion, entry.InputDigest, entry.EvaluatedAt, entry.RecordedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("appending audit entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("committing audit entry: %w", err)
	}

	s.logger.Debug("audit entry recorded", "entry_id", entry.EntryID, "document", documentRef, "status", entry.Status)
	return entry, nil
}

// ReadAll returns every entry in entry_id order. The log is never
// reordered or compacted.
func (s *Store) ReadAll() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT entry_id, document_ref, status, reasons, policy_version, input_digest, evaluated_at, recorded_at
		 FROM audit_entries ORDER BY entry_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// Query returns audit entries matching the given filters, newest first.
func (s *Store) Query(opts QueryOpts) ([]Entry, error) {
	query := `SELECT entry_id, document_ref, status, reasons, policy_version, input_digest, evaluated_at, recorded_at
		FROM audit_entries WHERE 1=1`
	var args []any

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, opts.Status)
	}
	if opts.DocumentRef != "" {
		query += " AND document_ref = ?"
		args = append(args, opts.DocumentRef)
	}
	if opts.Since != "" {
		query += " AND recorded_at >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY entry_id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	} else {
		query += " LIMIT 50"
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// StatusCounts returns entry totals grouped by verdict status.
func (s *Store) StatusCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM audit_entries GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var status, reasons string
		if err := rows.Scan(&e.EntryID, &e.DocumentRef, &status, &reasons,
			&e.PolicyVersion, &e.InputDigest, &e.EvaluatedAt, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.Status = policy.Status(status)
		if err := json.Unmarshal([]byte(reasons), &e.Reasons); err != nil {
			return nil, fmt.Errorf("decoding reasons for entry %d: %w", e.EntryID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
