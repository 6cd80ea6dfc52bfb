package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DeviceSettings holds persistable device preferences for the pairing and
// cast viewer binaries.
type DeviceSettings struct {
	ServerURL   string `json:"serverUrl"`  // signald base URL
	LastCode    string `json:"lastCode"`   // most recent pairing code
	CameraPath  string `json:"cameraPath"` // H264 source for the phone side
	CameraFPS   int    `json:"cameraFps"`
	JoinTimeout int    `json:"joinTimeoutSeconds"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() DeviceSettings {
	return DeviceSettings{
		ServerURL:   "http://localhost:8080",
		CameraFPS:   30,
		JoinTimeout: 120,
	}
}

// getConfigPath returns the config file path.
// Uses XDG_CONFIG_HOME if set, otherwise the OS user config directory.
func getConfigPath() (string, error) {
	var configDir string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "pedalcast")
	} else {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(userConfigDir, "pedalcast")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads settings from the config file.
// Returns default settings if the file doesn't exist or is invalid.
func Load() (DeviceSettings, error) {
	settings := DefaultSettings()

	path, err := getConfigPath()
	if err != nil {
		return settings, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file yet - defaults, not an error
			return settings, nil
		}
		return settings, err
	}

	// Parse JSON, keeping defaults for missing fields
	if err := json.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), nil
	}

	if settings.CameraFPS <= 0 {
		settings.CameraFPS = DefaultSettings().CameraFPS
	}
	if settings.JoinTimeout < 0 {
		settings.JoinTimeout = 0
	}

	return settings, nil
}

// Save writes settings to the config file.
func Save(settings DeviceSettings) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
