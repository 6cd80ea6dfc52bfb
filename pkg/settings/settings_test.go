package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != DefaultSettings() {
		t.Errorf("Load = %+v, want defaults %+v", got, DefaultSettings())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	want := DeviceSettings{
		ServerURL:   "https://pedalcast.example.com",
		LastCode:    "4821",
		CameraPath:  "/dev/shm/ride.h264",
		CameraFPS:   25,
		JoinTimeout: 60,
	}
	if err := Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "pedalcast", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != DefaultSettings() {
		t.Errorf("Load on corrupt file = %+v, want defaults", got)
	}
}

func TestLoadSanitizesValues(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "pedalcast", "config.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"cameraFps":-5,"joinTimeoutSeconds":-1}`), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CameraFPS != DefaultSettings().CameraFPS {
		t.Errorf("CameraFPS = %d, want default %d", got.CameraFPS, DefaultSettings().CameraFPS)
	}
	if got.JoinTimeout != 0 {
		t.Errorf("JoinTimeout = %d, want 0", got.JoinTimeout)
	}
}
