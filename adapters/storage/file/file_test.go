package file

import (
	"context"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", "users"},
		{"../../etc/passwd", "etcpasswd"},
		{"a.b.c", "abc"},
		{"", "default"},
		{"...", "default"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatches(t *testing.T) {
	record := map[string]interface{}{"name": "ada", "age": float64(30)}

	if !matches(record, map[string]interface{}{"name": "ada"}) {
		t.Error("expected match on name")
	}
	if matches(record, map[string]interface{}{"name": "grace"}) {
		t.Error("expected no match on differing name")
	}
	if !matches(record, nil) {
		t.Error("empty criteria should match everything")
	}
	if matches(record, map[string]interface{}{"missing": "x"}) {
		t.Error("expected no match on missing key")
	}
}

func TestMemorySaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := map[string]map[string]interface{}{
		"greeting": {"text": "hello", "count": float64(1)},
	}
	if err := a.SaveMemory(ctx, want); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}

	got, err := a.LoadMemory(ctx)
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if got["greeting"]["text"] != "hello" {
		t.Errorf("LoadMemory roundtrip mismatch: got %+v", got)
	}
}

func TestLoadMemoryMissingFileReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := a.LoadMemory(ctx)
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map for missing file, got %+v", got)
	}
}

func TestKeepFindLose(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := a.Keep(ctx, "notes", map[string]interface{}{"id": "1", "text": "buy milk"}); err != nil {
		t.Fatalf("Keep: %v", err)
	}
	if err := a.Keep(ctx, "notes", map[string]interface{}{"id": "2", "text": "walk dog"}); err != nil {
		t.Fatalf("Keep: %v", err)
	}

	found, err := a.Find(ctx, "notes", map[string]interface{}{"id": "1"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(found) != 1 || found[0]["text"] != "buy milk" {
		t.Errorf("Find returned unexpected records: %+v", found)
	}

	one, ok, err := a.FindOne(ctx, "notes", map[string]interface{}{"id": "2"})
	if err != nil || !ok {
		t.Fatalf("FindOne: %v ok=%v", err, ok)
	}
	if one["text"] != "walk dog" {
		t.Errorf("FindOne returned unexpected record: %+v", one)
	}

	if err := a.Lose(ctx, "notes", map[string]interface{}{"id": "1"}); err != nil {
		t.Fatalf("Lose: %v", err)
	}
	remaining, err := a.Find(ctx, "notes", nil)
	if err != nil {
		t.Fatalf("Find after Lose: %v", err)
	}
	if len(remaining) != 1 || remaining[0]["id"] != "2" {
		t.Errorf("expected only id=2 to remain, got %+v", remaining)
	}
}

func TestFindOneNoMatch(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, ok, err := a.FindOne(ctx, "empty-collection", map[string]interface{}{"id": "nope"})
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if ok {
		t.Error("expected no match against an empty collection")
	}
}
