package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/weavebot/weavebot/pkg/config"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Adapter{cfg: config.CloudStorageConfig{BaseURL: srv.URL}, client: srv.Client()}
}

func TestSaveAndLoadMemory(t *testing.T) {
	var stored map[string]map[string]interface{}

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&stored)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(stored)
		}
	})

	ctx := context.Background()
	want := map[string]map[string]interface{}{"greeting": {"text": "hi"}}
	if err := a.SaveMemory(ctx, want); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}

	got, err := a.LoadMemory(ctx)
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if got["greeting"]["text"] != "hi" {
		t.Errorf("LoadMemory mismatch: got %+v", got)
	}
}

func TestLoadMemoryNotFoundReturnsEmpty(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	got, err := a.LoadMemory(context.Background())
	if err != nil {
		t.Fatalf("LoadMemory: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map on 404, got %+v", got)
	}
}

func TestKeepFindLoseAgainstServer(t *testing.T) {
	var records []map[string]interface{}

	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/collections/notes":
			var rec map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&rec)
			records = append(records, rec)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/collections/notes/find":
			_ = json.NewEncoder(w).Encode(records)
		case r.Method == http.MethodDelete && r.URL.Path == "/collections/notes/query":
			records = nil
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	if err := a.Keep(ctx, "notes", map[string]interface{}{"id": "1"}); err != nil {
		t.Fatalf("Keep: %v", err)
	}

	found, err := a.Find(ctx, "notes", nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(found) != 1 || found[0]["id"] != "1" {
		t.Errorf("Find returned unexpected records: %+v", found)
	}

	if err := a.Lose(ctx, "notes", map[string]interface{}{"id": "1"}); err != nil {
		t.Fatalf("Lose: %v", err)
	}
	found, err = a.Find(ctx, "notes", nil)
	if err != nil {
		t.Fatalf("Find after Lose: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no records after Lose, got %+v", found)
	}
}
