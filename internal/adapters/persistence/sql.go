package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/okian/pokerank/internal/domain/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS ratings (
    session_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    mu DOUBLE PRECISION NOT NULL,
    sigma DOUBLE PRECISION NOT NULL CHECK (sigma > 0),
    battle_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_ratings_session ON ratings(session_id);
`

// SQL stores sessions in a relational database.
type SQL struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var _ Client = (*SQL)(nil)

// OpenSQL opens driver ("sqlite" or "postgres") and creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection so ":memory:" databases are shared and writes serialize.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	s := &SQL{db: db, driver: driver, now: time.Now}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) createSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Load implements Client.
func (s *SQL) Load(ctx context.Context, sessionID string) (map[model.ItemID]model.Record, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT item_id, mu, sigma, battle_count FROM ratings WHERE session_id = ?"), sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", sessionID, err)
	}
	defer rows.Close()

	out := make(map[model.ItemID]model.Record)
	for rows.Next() {
		var (
			id  string
			rec model.Record
		)
		if err := rows.Scan(&id, &rec.Rating.Mu, &rec.Rating.Sigma, &rec.BattleCount); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out[model.ItemID(id)] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return out, nil
}

// Save implements Client. The session is replaced inside one transaction.
func (s *SQL) Save(ctx context.Context, sessionID string, records map[model.ItemID]model.Record) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM ratings WHERE session_id = ?"), sessionID); err != nil {
		return fmt.Errorf("clear session %q: %w", sessionID, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		"INSERT INTO ratings (session_id, item_id, mu, sigma, battle_count, updated_at) VALUES (?, ?, ?, ?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for id, rec := range records {
		if _, err := stmt.ExecContext(ctx, sessionID, string(id), rec.Rating.Mu, rec.Rating.Sigma, rec.BattleCount, now); err != nil {
			return fmt.Errorf("insert %q: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Close implements Client.
func (s *SQL) Close() error {
	return s.db.Close()
}
