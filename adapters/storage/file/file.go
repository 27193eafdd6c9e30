// Package file implements D11, atomic JSON-file persistence for
// Memory's whole-snapshot save/load and Keep/Lose/Find record storage.
// Grounded on the teacher's pkg/session/manager.go SessionManager.Save:
// marshal under a lock, write to a temp file in the same directory,
// chmod, fsync, then os.Rename over the target so a reader never
// observes a half-written file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/weavebot/weavebot/pkg/adapter"
)

// Name is the factory-registration name.
const Name = "file"

const memoryFile = "memory.json"

// Adapter persists Memory snapshots and named collections as one JSON
// file per collection under Dir.
type Adapter struct {
	dir string
	mu  sync.Mutex
}

// New builds an Adapter rooted at dir.
func New(dir string) *Adapter {
	if dir == "" {
		dir = "./weavebot-memory"
	}
	return &Adapter{dir: dir}
}

// Factory is the adapter.Factory registered under Name.
func Factory(info adapter.BotInfo) (adapter.Adapter, error) {
	return New(info.Config.FileStorage.Dir), nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start ensures the storage directory exists.
func (a *Adapter) Start(ctx context.Context) error {
	return os.MkdirAll(a.dir, 0755)
}

// Shutdown is a no-op: every write is already durable when it returns.
func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

func (a *Adapter) writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(a.dir, "weavebot-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// SaveMemory persists the whole collection map to memory.json.
func (a *Adapter) SaveMemory(ctx context.Context, data map[string]map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeAtomic(filepath.Join(a.dir, memoryFile), data)
}

// LoadMemory reads memory.json, returning an empty map if it does not
// exist yet.
func (a *Adapter) LoadMemory(ctx context.Context) (map[string]map[string]interface{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(a.dir, memoryFile))
	if os.IsNotExist(err) {
		return map[string]map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file: read memory: %w", err)
	}

	var data map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("file: parse memory: %w", err)
	}
	return data, nil
}

func (a *Adapter) collectionPath(collection string) string {
	return filepath.Join(a.dir, "collection-"+sanitize(collection)+".json")
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' || r == '\\' || r == '.' {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return "default"
	}
	return string(out)
}

func (a *Adapter) readCollection(collection string) ([]map[string]interface{}, error) {
	raw, err := os.ReadFile(a.collectionPath(collection))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Keep appends record to collection, persisted to its own JSON file.
func (a *Adapter) Keep(ctx context.Context, collection string, record map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := a.readCollection(collection)
	if err != nil {
		return fmt.Errorf("file: keep: %w", err)
	}
	records = append(records, record)
	return a.writeAtomic(a.collectionPath(collection), records)
}

// Lose deletes every record in collection matching criteria.
func (a *Adapter) Lose(ctx context.Context, collection string, criteria map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := a.readCollection(collection)
	if err != nil {
		return fmt.Errorf("file: lose: %w", err)
	}
	kept := records[:0]
	for _, r := range records {
		if !matches(r, criteria) {
			kept = append(kept, r)
		}
	}
	return a.writeAtomic(a.collectionPath(collection), kept)
}

// Find returns every record in collection matching criteria.
func (a *Adapter) Find(ctx context.Context, collection string, criteria map[string]interface{}) ([]map[string]interface{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := a.readCollection(collection)
	if err != nil {
		return nil, fmt.Errorf("file: find: %w", err)
	}
	var out []map[string]interface{}
	for _, r := range records {
		if matches(r, criteria) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindOne returns the first record in collection matching criteria.
func (a *Adapter) FindOne(ctx context.Context, collection string, criteria map[string]interface{}) (map[string]interface{}, bool, error) {
	records, err := a.Find(ctx, collection, criteria)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}

func matches(record, criteria map[string]interface{}) bool {
	for k, v := range criteria {
		if record[k] != v {
			return false
		}
	}
	return true
}
