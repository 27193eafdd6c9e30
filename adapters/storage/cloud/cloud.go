// Package cloud implements D12: a durable storage adapter backed by an
// HTTP key/value service behind an OAuth2 client-credentials flow.
// Grounded on the teacher's pkg/auth/oauth.go OAuth machinery (this
// repo depends on the same golang.org/x/oauth2 module the teacher's
// browser login flow uses) but simplified to the machine-to-machine
// clientcredentials.Config the teacher has no direct equivalent for,
// since this adapter authenticates itself rather than a human. The
// wire shape mirrors the teacher's own atomic-JSON convention from
// pkg/session/manager.go: whole snapshots and individual records are
// both plain JSON bodies over authenticated PUT/GET/POST/DELETE.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/weavebot/weavebot/pkg/adapter"
	"github.com/weavebot/weavebot/pkg/config"
)

// Name is the factory-registration name.
const Name = "cloud"

// Adapter is a StorageAdapter backed by an authenticated HTTP KV
// service.
type Adapter struct {
	cfg    config.CloudStorageConfig
	client *http.Client
}

// New is the adapter.Factory registered under Name.
func New(info adapter.BotInfo) (adapter.Adapter, error) {
	cfg := info.Config.CloudStorage
	if cfg.BaseURL == "" || cfg.TokenURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("cloud: base_url, token_url, and client_id are required")
	}

	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return &Adapter{cfg: cfg, client: oauthCfg.Client(context.Background())}, nil
}

// Name satisfies adapter.Adapter.
func (a *Adapter) Name() string { return Name }

// Start is a no-op: the oauth2 HTTP client refreshes tokens lazily on
// first request.
func (a *Adapter) Start(ctx context.Context) error { return nil }

// Shutdown is a no-op.
func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

func (a *Adapter) url(path string) string {
	return a.cfg.BaseURL + path
}

func (a *Adapter) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.url(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("cloud: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloud: %s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var errNotFound = fmt.Errorf("cloud: not found")

// SaveMemory PUTs the whole collection map to /memory.
func (a *Adapter) SaveMemory(ctx context.Context, data map[string]map[string]interface{}) error {
	return a.do(ctx, http.MethodPut, "/memory", data, nil)
}

// LoadMemory GETs the whole collection map from /memory, returning an
// empty map when the remote has nothing stored yet.
func (a *Adapter) LoadMemory(ctx context.Context) (map[string]map[string]interface{}, error) {
	var data map[string]map[string]interface{}
	if err := a.do(ctx, http.MethodGet, "/memory", nil, &data); err != nil {
		if err == errNotFound {
			return map[string]map[string]interface{}{}, nil
		}
		return nil, err
	}
	return data, nil
}

// Keep POSTs a new record onto /collections/{collection}.
func (a *Adapter) Keep(ctx context.Context, collection string, record map[string]interface{}) error {
	return a.do(ctx, http.MethodPost, "/collections/"+collection, record, nil)
}

type queryRequest struct {
	Criteria map[string]interface{} `json:"criteria"`
}

// Lose issues a delete-by-criteria request against the collection.
func (a *Adapter) Lose(ctx context.Context, collection string, criteria map[string]interface{}) error {
	return a.do(ctx, http.MethodDelete, "/collections/"+collection+"/query", queryRequest{Criteria: criteria}, nil)
}

// Find issues a query-by-criteria request against the collection.
func (a *Adapter) Find(ctx context.Context, collection string, criteria map[string]interface{}) ([]map[string]interface{}, error) {
	var records []map[string]interface{}
	if err := a.do(ctx, http.MethodPost, "/collections/"+collection+"/find", queryRequest{Criteria: criteria}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindOne returns the first match from Find.
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
