package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DraftRecord is the audit trail of one drafted letter. Correspondence text
// and letter prose are never stored.
type DraftRecord struct {
	ID        int64
	LetterID  string
	Strength  string
	ActCited  string
	Source    string
	Stance    string
	Fallback  bool // drafted by the keyword classifier
	CreatedAt time.Time
}

// PaymentRecord is the audit trail of one verification attempt
type PaymentRecord struct {
	ID        int64
	SessionID string
	LetterID  string
	Verified  bool
	Error     string
	CheckedAt time.Time
}

// Stats summarises the audit store
type Stats struct {
	Drafts          int
	FallbackDrafts  int
	ByStrength      map[string]int
	Verifications   int
	VerifiedPayment int
}

type Store struct {
	db *sql.DB
}

// scanDraft handles nullable columns when scanning a row
func scanDraft(scanner interface{ Scan(...any) error }) (*DraftRecord, error) {
	var r DraftRecord
	var createdAt sql.NullTime
	var act, stance sql.NullString
	var fallback int

	err := scanner.Scan(&r.ID, &r.LetterID, &r.Strength, &act, &r.Source, &stance, &fallback, &createdAt)
	if err != nil {
		return nil, err
	}

	r.ActCited = act.String
	r.Stance = stance.String
	r.Fallback = fallback != 0
	r.CreatedAt = createdAt.Time
	return &r, nil
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent handlers
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS drafts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		letter_id TEXT NOT NULL,
		strength TEXT NOT NULL,
		act_cited TEXT,
		source TEXT NOT NULL,
		stance TEXT,
		fallback INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_drafts_letter_id ON drafts(letter_id);
	CREATE INDEX IF NOT EXISTS idx_drafts_created_at ON drafts(created_at);

	CREATE TABLE IF NOT EXISTS payment_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		letter_id TEXT,
		verified INTEGER DEFAULT 0,
		error TEXT,
		checked_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pc_session_id ON payment_checks(session_id);
	CREATE INDEX IF NOT EXISTS idx_pc_letter_id ON payment_checks(letter_id);
	`

	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// RecordDraft stores the metadata of a drafted letter
func (s *Store) RecordDraft(record *DraftRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO drafts (letter_id, strength, act_cited, source, stance, fallback, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	fallback := 0
	if record.Fallback {
		fallback = 1
	}

	result, err := s.db.Exec(query,
		record.LetterID,
		record.Strength,
		record.ActCited,
		record.Source,
		record.Stance,
		fallback,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetDraft returns nil, nil when the letter id is unknown
func (s *Store) GetDraft(letterID string) (*DraftRecord, error) {
	query := `
	SELECT id, letter_id, strength, act_cited, source, stance, fallback, created_at
	FROM drafts WHERE letter_id = ?`

	record, err := scanDraft(s.db.QueryRow(query, letterID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query draft: %w", err)
	}
	return record, nil
}

func (s *Store) GetRecentDrafts(limit int) ([]DraftRecord, error) {
	query := `
	SELECT id, letter_id, strength, act_cited, source, stance, fallback, created_at
	FROM drafts ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var records []DraftRecord
	for rows.Next() {
		record, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// RecordPayment stores the outcome of a verification attempt
func (s *Store) RecordPayment(record *PaymentRecord) error {
	if record.CheckedAt.IsZero() {
		record.CheckedAt = time.Now()
	}

	verified := 0
	if record.Verified {
		verified = 1
	}

	result, err := s.db.Exec(`
	INSERT INTO payment_checks (session_id, letter_id, verified, error, checked_at)
	VALUES (?, ?, ?, ?, ?)`,
		record.SessionID, record.LetterID, verified, record.Error, record.CheckedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment check: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// IsLetterPaid reports whether any verified payment names the letter
func (s *Store) IsLetterPaid(letterID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM payment_checks WHERE letter_id = ? AND verified = 1`, letterID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query payment checks: %w", err)
	}
	return count > 0, nil
}

func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{ByStrength: make(map[string]int)}

	var fallback sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(*), SUM(fallback) FROM drafts`).Scan(&stats.Drafts, &fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft stats: %w", err)
	}
	stats.FallbackDrafts = int(fallback.Int64)

	rows, err := s.db.Query(`SELECT strength, COUNT(*) FROM drafts GROUP BY strength`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strength stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var strength string
		var count int
		if err := rows.Scan(&strength, &count); err != nil {
			return nil, fmt.Errorf("failed to scan strength stat: %w", err)
		}
		stats.ByStrength[strength] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var verified sql.NullInt64
	err = s.db.QueryRow(`SELECT COUNT(*), SUM(verified) FROM payment_checks`).Scan(&stats.Verifications, &verified)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment stats: %w", err)
	}
	stats.VerifiedPayment = int(verified.Int64)

	return stats, nil
}

// Prune deletes draft records older than the cutoff and returns how many went
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM drafts WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete drafts: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) Close() error { return s.db.Close() }
