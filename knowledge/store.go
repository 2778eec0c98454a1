// Package knowledge persists action-effect learnings and strategy
// guides in a local SQLite database, with keyword retrieval for prompt
// enrichment. A learning records what a button press did in a given
// context; a guide records a strategy that worked.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bizkut/eden-fft-agent/log"
	"github.com/bizkut/eden-fft-agent/types"
)

// Learning is one observed button-press effect.
type Learning struct {
	ID      int64
	Button  string
	Phase   types.GamePhase
	Context string
	Effect  string
	// BeforeFrame/AfterFrame are optional paths to captured frames.
	BeforeFrame string
	AfterFrame  string
	CreatedAt   time.Time
}

// Guide is one stored strategy document.
type Guide struct {
	ID        int64
	Title     string
	Content   string
	Tags      []string
	CreatedAt time.Time
}

// Store wraps the SQLite database. Safe for concurrent use; the
// sql.DB pool serializes access.
type Store struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS action_learnings (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	button       TEXT NOT NULL,
	phase        TEXT NOT NULL,
	context      TEXT NOT NULL,
	effect       TEXT NOT NULL,
	before_frame TEXT NOT NULL DEFAULT '',
	after_frame  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_learnings_button ON action_learnings(button, phase);

CREATE TABLE IF NOT EXISTS strategy_guides (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
`

// Open opens (or creates) the knowledge database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Nop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open knowledge db %q: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize knowledge db %q: %w", path, err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	if n, err := s.CountLearnings(context.Background()); err == nil {
		logger.Info("knowledge store opened", map[string]any{"path": path, "learnings": n})
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StoreLearning records one action-effect observation.
func (s *Store) StoreLearning(ctx context.Context, l Learning) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO action_learnings (button, phase, context, effect, before_frame, after_frame, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.Button, string(l.Phase), l.Context, l.Effect, l.BeforeFrame, l.AfterFrame, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cannot store learning: %w", err)
	}
	return res.LastInsertId()
}

// ButtonKnowledge returns everything learned about one button,
// optionally filtered by game phase, newest first.
func (s *Store) ButtonKnowledge(ctx context.Context, button string, phase types.GamePhase) ([]Learning, error) {
	query := `SELECT id, button, phase, context, effect, before_frame, after_frame, created_at
		FROM action_learnings WHERE button = ?`
	args := []any{button}
	if phase != "" {
		query += ` AND phase = ?`
		args = append(args, string(phase))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot query learnings: %w", err)
	}
	defer rows.Close()
	return scanLearnings(rows)
}

// SimilarLearnings finds past observations matching the button, phase,
// and any keyword of the context description.
func (s *Store) SimilarLearnings(ctx context.Context, button string, phase types.GamePhase, contextDesc string, limit int) ([]Learning, error) {
	if limit <= 0 {
		limit = 3
	}
	query := `SELECT id, button, phase, context, effect, before_frame, after_frame, created_at
		FROM action_learnings WHERE button = ? AND phase = ?`
	args := []any{button, string(phase)}

	if clause, kwArgs := keywordClause("context", contextDesc); clause != "" {
		query += ` AND (` + clause + `)`
		args = append(args, kwArgs...)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot query similar learnings: %w", err)
	}
	defer rows.Close()
	return scanLearnings(rows)
}

// StoreStrategyGuide records one strategy document. Satisfies the
// learner's guide-store interface.
func (s *Store) StoreStrategyGuide(title, content string, tags []string) error {
	_, err := s.db.Exec(`
		INSERT INTO strategy_guides (title, content, tags, created_at)
		VALUES (?, ?, ?, ?)`,
		title, content, strings.Join(tags, ","), s.now().UTC())
	if err != nil {
		return fmt.Errorf("cannot store guide %q: %w", title, err)
	}
	s.logger.Info("stored strategy guide", map[string]any{"title": title})
	return nil
}

// QueryGuides retrieves guides whose title, content, or tags match any
// keyword of the query, newest first.
func (s *Store) QueryGuides(ctx context.Context, query string, limit int) ([]Guide, error) {
	if limit <= 0 {
		limit = 3
	}
	sqlQuery := `SELECT id, title, content, tags, created_at FROM strategy_guides`
	var args []any

	clauses := make([]string, 0, 3)
	for _, col := range []string{"title", "content", "tags"} {
		if clause, kwArgs := keywordClause(col, query); clause != "" {
			clauses = append(clauses, clause)
			args = append(args, kwArgs...)
		}
	}
	if len(clauses) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(clauses, " OR ")
	}
	sqlQuery += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("cannot query guides: %w", err)
	}
	defer rows.Close()

	var guides []Guide
	for rows.Next() {
		var g Guide
		var tags string
		if err := rows.Scan(&g.ID, &g.Title, &g.Content, &tags, &g.CreatedAt); err != nil {
			return nil, err
		}
		if tags != "" {
			g.Tags = strings.Split(tags, ",")
		}
		guides = append(guides, g)
	}
	return guides, rows.Err()
}

// CountLearnings returns the number of stored learnings.
func (s *Store) CountLearnings(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM action_learnings`).Scan(&n)
	return n, err
}

// keywordClause builds "col LIKE ? OR col LIKE ?" over the words of
// text, skipping words too short to discriminate.
func keywordClause(col, text string) (string, []any) {
	var parts []string
	var args []any
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'()")
		if len(word) < 4 {
			continue
		}
		parts = append(parts, col+" LIKE ?")
		args = append(args, "%"+word+"%")
	}
	return strings.Join(parts, " OR "), args
}

func scanLearnings(rows *sql.Rows) ([]Learning, error) {
	var out []Learning
	for rows.Next() {
		var l Learning
		var phase string
		if err := rows.Scan(&l.ID, &l.Button, &phase, &l.Context, &l.Effect, &l.BeforeFrame, &l.AfterFrame, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Phase = types.GamePhase(phase)
		out = append(out, l)
	}
	return out, rows.Err()
}
