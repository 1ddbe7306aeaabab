package cli

import (
	"encoding/json"
	"io"

	"github.com/park285/livechess/internal/livegame"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// gameSummary is the JSON output of replay and snapshot.
type gameSummary struct {
	GameID    string   `json:"gameId"`
	Status    string   `json:"status"`
	Winner    string   `json:"winner,omitempty"`
	FEN       string   `json:"fen"`
	Moves     []string `json:"moves"`
	SAN       []string `json:"san"`
	MoveCount int      `json:"moveCount"`
	Output    string   `json:"output,omitempty"`
}

func summarize(s livegame.Snapshot) gameSummary {
	return gameSummary{
		GameID:    s.GameID,
		Status:    s.StatusName,
		Winner:    s.Winner,
		FEN:       s.FEN,
		Moves:     s.Moves,
		SAN:       s.SAN,
		MoveCount: s.MoveCount,
	}
}
