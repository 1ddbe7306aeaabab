package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const foolsMate = `{"type":"gameFull","id":"fool","initialFen":"startpos","white":{"id":"alice","name":"Alice"},"black":{"id":"bob","name":"Bob"},"state":{"type":"gameState","moves":"","wtime":60000,"btime":60000,"status":"started"}}
{"type":"gameState","moves":"f2f3","wtime":60000,"btime":60000,"status":"started"}
{"type":"chatLine","room":"player","username":"bob","text":"gl"}
{"type":"gameState","moves":"f2f3 e7e5","wtime":59000,"btime":60000,"status":"started"}
{"type":"gameState","moves":"f2f3 e7e5 g2g4","wtime":59000,"btime":59000,"status":"started"}
{"type":"gameState","moves":"f2f3 e7e5 g2g4 d8h4","wtime":58000,"btime":59000,"status":"mate","winner":"black"}
`

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fool.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(foolsMate), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandTree(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"watch", "replay", "snapshot", "check"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("format"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	_, err := execute(t, "--format", "xml", "replay", "x.ndjson")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "replay", writeRecording(t))
	require.NoError(t, err)

	var sum gameSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, "fool", sum.GameID)
	assert.Equal(t, "mate", sum.Status)
	assert.Equal(t, "black", sum.Winner)
	assert.Equal(t, 4, sum.MoveCount)
	assert.Equal(t, []string{"f2f3", "e7e5", "g2g4", "d8h4"}, sum.Moves)
}

func TestReplayText(t *testing.T) {
	out, err := execute(t, "replay", writeRecording(t), "--as", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Checkmate. Black wins")
	assert.Contains(t, out, "fool: 4 moves, mate")
}

func TestReplayUnknownMode(t *testing.T) {
	_, err := execute(t, "replay", writeRecording(t), "--mode", "upside-down")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayMissingFile(t *testing.T) {
	_, err := execute(t, "replay", filepath.Join(t.TempDir(), "nope.ndjson"))
	require.Error(t, err)
	assert.NotEqual(t, ExitSuccess, GetExitCode(err))
}

func TestSnapshotWritesPNG(t *testing.T) {
	target := filepath.Join(t.TempDir(), "board.png")
	out, err := execute(t, "snapshot", writeRecording(t), "--png", target)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+target)

	f, err := os.Open(target)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 8*40)
}

func TestCheckAllHealthy(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/account" || r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "nope", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"alice","username":"Alice"}`))
	}))
	defer api.Close()
	mr := miniredis.RunT(t)

	t.Setenv("LIVE_BASE_URL", api.URL)
	t.Setenv("LIVE_STREAM_URL", "ws://127.0.0.1:1/stream")
	t.Setenv("LIVE_API_TOKEN", "tok")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MSG_CATALOG_DIR", "")

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "config: ok")
	assert.Contains(t, out, "account: ok")
	assert.Contains(t, out, "redis: ok")
	assert.NotContains(t, out, "postgres")
}

func TestCheckReportsFailures(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer api.Close()

	t.Setenv("LIVE_BASE_URL", api.URL)
	t.Setenv("LIVE_STREAM_URL", "https://example.test/stream")
	t.Setenv("LIVE_API_TOKEN", "wrong")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MSG_CATALOG_DIR", "")

	out, err := execute(t, "--format", "json", "check")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var results []checkResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.Equal(t, "account", results[1].Name)
	assert.False(t, results[1].OK)
	assert.True(t, strings.Contains(results[1].Error, "401"))
}

func TestCheckMissingConfig(t *testing.T) {
	t.Setenv("LIVE_BASE_URL", "")
	t.Setenv("LIVE_STREAM_URL", "")
	out, err := execute(t, "check")
	require.Error(t, err)
	assert.Contains(t, out, "config: LIVE_BASE_URL is required")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	wrapped := WrapExitError(ExitCommandError, "bad input", errors.New("eof"))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "bad input: eof", wrapped.Error())
	assert.ErrorIs(t, wrapped, wrapped.Err)
}

func TestIsWebSocketURL(t *testing.T) {
	assert.True(t, isWebSocketURL("WSS://lichess.org/stream"))
	assert.True(t, isWebSocketURL("ws://localhost/stream"))
	assert.False(t, isWebSocketURL("https://lichess.org/api/board/game/stream"))
}
