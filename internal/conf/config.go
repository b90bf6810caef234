// Package conf handles the configuration for the reolink-feed daemon.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // path to log file
	Rotation RotationType // rotation type
	MaxSize  int64        // max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// FeedSettings contains the detection feed behaviour knobs.
type FeedSettings struct {
	EnabledLabels        []string // detection labels that produce feed items
	RetentionHours       int      // max age of items in hours
	MaxDetections        int      // max number of items kept in the timeline
	MergeWindowSeconds   int      // max gap between close and reopen treated as one event
	SnapshotDelay        float64  // seconds to wait before capturing a snapshot
	ListLimit            int      // default limit for list requests
	CleanupInterval      int      // seconds between retention/quota passes
	StorePath            string   // path of the persisted timeline document
	MediaRoot            string   // directory for cached snapshots and recordings
	MediaSourceID        string   // media source prefix used in public asset URLs
	CacheRecordings      bool     // true to download and cache matched clips
	MaxStorageGB         float64  // byte budget for cached assets, in gigabytes
	RecordingRetryDelays []int    // resolution ladder delays in seconds
	WindowStartPad       int      // seconds subtracted from event start for the match window
	WindowEndPad         int      // seconds added to event end for the match window
	DefaultClipDuration  int      // assumed clip length in seconds when the title has none
}

// HubSettings describes how to reach the home automation hub the daemon
// consumes signals, snapshots, history and the media catalog from.
type HubSettings struct {
	BaseURL string // base URL of the hub API
	Token   string // long lived access token
	Timeout int    // request timeout in seconds
}

// Settings contains all configuration options for the reolink-feed daemon.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name      string    // name of this node, used to identify the source of items
		TimeAs24h bool      // true 24-hour time format, false 12-hour time format
		Log       LogConfig // logging configuration
	}

	Feed FeedSettings // detection feed configuration

	Hub HubSettings // hub connection configuration

	WebServer struct {
		Debug   bool   // true to enable debug mode
		Enabled bool   // true to enable web server
		Port    string // port for web server
	}
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into a Settings struct.
func Load() (*Settings, error) {
	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal config into struct
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

func initViper() error {
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	viper.SetConfigName("config")

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// Config file not found, create one from defaults
		configPath := filepath.Join(configPaths[0], "config.yaml")
		if err := createDefaultConfig(configPath); err != nil {
			return fmt.Errorf("error creating default config file: %w", err)
		}
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading newly created config file: %w", err)
		}
	}

	return nil
}

// createDefaultConfig writes the current defaults as a starter config file.
func createDefaultConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := viper.SafeWriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	log.Println("Created default config file at:", configPath)
	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	var paths []string

	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "reolink-feed"))
	}
	homeDir, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "reolink-feed"))
	}
	paths = append(paths, ".")

	if len(paths) == 0 {
		return nil, fmt.Errorf("no valid config paths found")
	}
	return paths, nil
}

// Setting returns the current settings instance, loading it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetTestSettings replaces the global settings instance. Tests only.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
	once.Do(func() {})
}

// MergeWindow returns the merge window as a duration.
func (f *FeedSettings) MergeWindow() time.Duration {
	return time.Duration(f.MergeWindowSeconds) * time.Second
}

// RetentionCutoff returns the oldest allowed item start time relative to now.
func (f *FeedSettings) RetentionCutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(f.RetentionHours) * time.Hour)
}

// MaxStorageBytes converts the configured gigabyte budget to bytes.
func (f *FeedSettings) MaxStorageBytes() int64 {
	return int64(f.MaxStorageGB * 1024 * 1024 * 1024)
}
