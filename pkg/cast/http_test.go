package cast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// snapshotAPI mimics signald's /api/cast/{code} resource over a MemoryStore.
func snapshotAPI(store *MemoryStore) http.Handler {
	var mu sync.Mutex
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		code := r.URL.Path[len("/api/cast/"):]
		switch r.Method {
		case http.MethodGet:
			snap, ok, _ := store.Get(r.Context(), code)
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(snap)
		case http.MethodPut:
			var snap Snapshot
			if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
				http.Error(w, "bad snapshot", http.StatusBadRequest)
				return
			}
			store.Put(r.Context(), code, snap)
		case http.MethodDelete:
			if _, ok, _ := store.Get(r.Context(), code); !ok {
				http.NotFound(w, r)
				return
			}
			store.Clear(r.Context(), code)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func TestHTTPStoreRoundTrip(t *testing.T) {
	backend := NewMemoryStore()
	srv := httptest.NewServer(snapshotAPI(backend))
	defer srv.Close()

	ctx := context.Background()
	store := NewHTTPStore(srv.URL + "/")

	if _, ok, err := store.Get(ctx, "9034"); err != nil || ok {
		t.Fatalf("Get before publish = ok=%v err=%v, want absent without error", ok, err)
	}

	want := Snapshot{
		Mode:         ModeCast,
		Speed:        24.3,
		RPM:          88,
		Distance:     5.21,
		RideTime:     612,
		Gear:         3,
		IsPlaying:    true,
		PlaybackRate: 1.0,
		CurrentTime:  611.5,
		VideoURL:     "https://cdn.example.com/ride.mp4",
		Phase:        "riding",
	}
	if err := store.Put(ctx, "9034", want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.Get(ctx, "9034")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want present", ok, err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}

	if err := store.Clear(ctx, "9034"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "9034"); ok {
		t.Error("record still present after clear")
	}

	// Clearing a record that is already gone is fine: the server's 404 is
	// not an error for Clear.
	if err := store.Clear(ctx, "9034"); err != nil {
		t.Errorf("clear absent: %v", err)
	}
}

func TestHTTPStoreServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx := context.Background()
	store := NewHTTPStore(srv.URL)

	if err := store.Put(ctx, "9034", Snapshot{}); err == nil {
		t.Error("Put swallowed a server error")
	}
	if _, _, err := store.Get(ctx, "9034"); err == nil {
		t.Error("Get swallowed a server error")
	}
	if err := store.Clear(ctx, "9034"); err == nil {
		t.Error("Clear swallowed a server error")
	}
}

func TestHTTPStoreUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := NewHTTPStore(url)
	if _, _, err := store.Get(context.Background(), "9034"); err == nil {
		t.Error("Get against a closed server returned no error")
	}
}
