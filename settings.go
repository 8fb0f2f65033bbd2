package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"composition-corrector/annotation"
	"composition-corrector/classifier"
)

const (
	configDir    = "config"
	settingsFile = "settings.json"
)

// Settings are the runtime-tunable parts of the pipeline, persisted in
// config/settings.json and editable through /api/settings.
type Settings struct {
	SimilarityThreshold float64                              `json:"similarity_threshold"`
	MinTokenLength      int                                  `json:"min_token_length"`
	MarginWidth         int                                  `json:"margin_width"`
	Styles              map[string]annotation.StyleOverride `json:"styles,omitempty"`
}

var (
	settings      Settings
	settingsMutex sync.RWMutex
)

// defaultSettings starts from the environment, falling back to the
// built-in defaults.
func defaultSettings() Settings {
	return Settings{
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", classifier.DefaultThreshold),
		MinTokenLength:      envInt("MIN_TOKEN_LENGTH", classifier.DefaultMinTokenLength),
		MarginWidth:         envInt("MARGIN_WIDTH", annotation.DefaultMarginWidth),
		Styles:              map[string]annotation.StyleOverride{},
	}
}

// Validate checks that the settings can build a pipeline.
func (s Settings) Validate() error {
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between 0 and 1, got %v", s.SimilarityThreshold)
	}
	if s.MinTokenLength < 1 {
		return fmt.Errorf("min_token_length must be positive, got %d", s.MinTokenLength)
	}
	if s.MarginWidth < 1 {
		return fmt.Errorf("margin_width must be positive, got %d", s.MarginWidth)
	}
	if _, err := annotation.DefaultCatalog().WithOverrides(s.Styles); err != nil {
		return err
	}
	return nil
}

// currentSettings returns a copy that callers may modify.
func currentSettings() Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	s := settings
	s.Styles = maps.Clone(settings.Styles)
	return s
}

// saveSettings saves the current settings to the settings.json file.
func saveSettings() error {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	return saveSettingsLocked()
}

// saveSettingsLocked performs the actual saving without locking the mutex.
// This is to be called from functions that already hold the lock.
func saveSettingsLocked() error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, settingsFile), data, 0644)
}

// loadSettings loads the settings from settings.json, creating it with defaults if it doesn't exist or is corrupt.
func loadSettings() {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settingsPath := filepath.Join(configDir, settingsFile)
	data, err := os.ReadFile(settingsPath)

	if err != nil {
		if os.IsNotExist(err) {
			log.Infof("Settings file not found at %s, creating with default values.", settingsPath)
			settings = defaultSettings()
			if err := saveSettingsLocked(); err != nil {
				log.Fatalf("Failed to create default settings file: %v", err)
			}
		} else {
			log.Warnf("Failed to read settings file: %v. Loading default settings.", err)
			settings = defaultSettings()
		}
		return
	}

	loaded := defaultSettings()
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Warnf("Failed to parse settings file, please check its format. Loading default settings. Error: %v", err)
		settings = defaultSettings()
		return
	}
	if err := loaded.Validate(); err != nil {
		log.Warnf("Invalid settings in %s, loading default settings: %v", settingsPath, err)
		settings = defaultSettings()
		return
	}
	settings = loaded

	log.Info("Successfully loaded settings from settings.json")
}
