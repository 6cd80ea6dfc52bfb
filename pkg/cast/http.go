package cast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HTTPStore reads and writes snapshots through the signald REST API. It is
// what the viewer devices use; only signald itself talks to Redis.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a store client for the given server base URL, e.g.
// https://pedalcast.example.com.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPStore) url(code string) string {
	return fmt.Sprintf("%s/api/cast/%s", h.baseURL, code)
}

func (h *HTTPStore) Put(ctx context.Context, code string, snap Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.url(code), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "store snapshot")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("store snapshot: status %s", resp.Status)
	}
	return nil
}

func (h *HTTPStore) Get(ctx context.Context, code string) (Snapshot, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url(code), nil)
	if err != nil {
		return Snapshot{}, false, errors.Wrap(err, "build request")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Snapshot{}, false, errors.Wrap(err, "read snapshot")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return Snapshot{}, false, nil
	case http.StatusOK:
	default:
		return Snapshot{}, false, errors.Errorf("read snapshot: status %s", resp.Status)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, false, errors.Wrap(err, "decode snapshot")
	}
	return snap, true, nil
}

func (h *HTTPStore) Clear(ctx context.Context, code string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, h.url(code), nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "clear snapshot")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return errors.Errorf("clear snapshot: status %s", resp.Status)
	}
	return nil
}
