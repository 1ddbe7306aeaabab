// Package archive stores finished games in Postgres with a PGN transcript.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Record is one finished game.
type Record struct {
	GameID     string
	InitialFEN string // empty for the standard start
	WhiteID    string
	WhiteName  string
	BlackID    string
	BlackName  string
	Result     string // "white", "black", "draw" or ""
	Method     string // final status name, e.g. "mate", "resign"
	MovesUCI   []string
	MovesSAN   []string
	StartedAt  time.Time
	EndedAt    time.Time
}

// Store persists finished games. Repository is the Postgres implementation.
type Store interface {
	SaveResult(ctx context.Context, rec *Record) error
}

const schema = `CREATE TABLE IF NOT EXISTS live_games (
	game_id       TEXT PRIMARY KEY,
	initial_fen   TEXT NOT NULL DEFAULT '',
	white_id      TEXT NOT NULL DEFAULT '',
	white_name    TEXT NOT NULL DEFAULT '',
	black_id      TEXT NOT NULL DEFAULT '',
	black_name    TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL DEFAULT '',
	result_method TEXT NOT NULL DEFAULT '',
	moves_uci     JSONB NOT NULL DEFAULT '[]',
	moves_san     JSONB NOT NULL DEFAULT '[]',
	pgn           TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ,
	ended_at      TIMESTAMPTZ,
	duration_ms   BIGINT NOT NULL DEFAULT 0
)`

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the live_games table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// SaveResult upserts rec keyed by game id.
func (r *Repository) SaveResult(ctx context.Context, rec *Record) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}
	movesUCI, err := json.Marshal(nonNil(rec.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(rec.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	duration := rec.EndedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 || rec.StartedAt.IsZero() {
		duration = 0
	}

	const q = `INSERT INTO live_games (
		game_id, initial_fen, white_id, white_name, black_id, black_name,
		result, result_method, moves_uci, moves_san, pgn,
		started_at, ended_at, duration_ms
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10::jsonb,$11,$12,$13,$14)
	ON CONFLICT (game_id) DO UPDATE SET
		result=EXCLUDED.result,
		result_method=EXCLUDED.result_method,
		moves_uci=EXCLUDED.moves_uci,
		moves_san=EXCLUDED.moves_san,
		pgn=EXCLUDED.pgn,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		rec.GameID, rec.InitialFEN,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.Result, rec.Method,
		string(movesUCI), string(movesSAN), BuildPGN(rec),
		rec.StartedAt, rec.EndedAt, duration,
	)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func resultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders rec as a PGN game with a numbered SAN move list.
func BuildPGN(rec *Record) string {
	if rec == nil {
		return ""
	}
	result := resultToPGN(rec.Result)
	date := rec.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[Event \"Live game\"]\n")
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitize(rec.GameID))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitize(rec.WhiteName))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitize(rec.BlackName))
	if fen := strings.TrimSpace(rec.InitialFEN); fen != "" {
		fmt.Fprintf(&b, "[SetUp \"1\"]\n[FEN \"%s\"]\n", sanitize(fen))
	}
	if m := strings.TrimSpace(rec.Method); m != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitize(strings.ToLower(m)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	// a position with black to move starts the list with "1..."
	offset := 0
	if blackToMove(rec.InitialFEN) {
		offset = 1
	}
	for i, san := range rec.MovesSAN {
		ply := i + offset
		switch {
		case ply%2 == 0:
			fmt.Fprintf(&b, "%d. ", ply/2+1)
		case i == 0:
			fmt.Fprintf(&b, "%d... ", ply/2+1)
		}
		b.WriteString(strings.TrimSpace(san))
		b.WriteByte(' ')
	}
	b.WriteString(result)
	return b.String()
}

func blackToMove(fen string) bool {
	f := strings.Fields(fen)
	return len(f) > 1 && f[1] == "b"
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
