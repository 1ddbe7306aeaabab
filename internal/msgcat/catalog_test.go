package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedSpeech(t *testing.T) {
	c := Default()
	got, err := c.Render("speech.check", map[string]any{"Side": "White", "Display": "d1-h5"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "White d1-h5, check" {
		t.Fatalf("got %q", got)
	}
}

func TestMissingFieldIsError(t *testing.T) {
	c := Default()
	if _, err := c.Render("speech.move", map[string]any{"Side": "Black"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.RenderOr("speech.move", map[string]any{"Side": "Black"}, "e7-e5"); got != "e7-e5" {
		t.Fatalf("fallback=%q", got)
	}
}

func TestUnknownKey(t *testing.T) {
	c := Default()
	if c.Has("speech.nope") {
		t.Fatalf("unexpected key")
	}
	if _, err := c.Render("speech.nope", nil); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "speech:\n  move: \"{{.Display}} by {{.Side}}\"\n")
	write(t, dir, "notes.txt", "ignored")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, _ := c.Render("speech.move", map[string]string{"Side": "White", "Display": "e2-e4"})
	if got != "e2-e4 by White" {
		t.Fatalf("override not applied: %q", got)
	}
	if !c.Has("status.draw") {
		t.Fatalf("embedded keys lost")
	}
}

func TestOverrideDuplicateKey(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.yaml", "status:\n  draw: \"Remis\"\n")
	write(t, dir, "b.yml", "status:\n  draw: \"Nulle\"\n")
	_, err := New(dir)
	if err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseFlat([]byte("speech:\n  move: 3\n")); err == nil {
		t.Fatalf("expected error for numeric leaf")
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Default().Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted at %d", i)
		}
	}
}

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
