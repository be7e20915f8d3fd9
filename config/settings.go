package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Database DatabaseSettings `json:"database"`
	Scratch  ScratchSettings  `json:"scratch"`
	Worker   WorkerSettings   `json:"worker"`
	Search   SearchSettings   `json:"search"`
	Proxy    ProxySettings    `json:"proxy"`
	Transmux TransmuxSettings `json:"transmux"`
	Blob     BlobSettings     `json:"blob"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseSettings defines where process state is persisted.
type DatabaseSettings struct {
	Path string `json:"path"`
}

// ScratchSettings defines the temp tree for in-flight downloads.
type ScratchSettings struct {
	Directory string `json:"directory"`
}

// WorkerSettings tunes the job pool.
type WorkerSettings struct {
	Concurrency int `json:"concurrency"`
	// LocateLimit bounds concurrent service lookups across all jobs.
	// 0 means "same as concurrency".
	LocateLimit int `json:"locateLimit"`
	// CancelOnRestart cancels incomplete processes at startup instead of
	// requeueing them.
	CancelOnRestart bool `json:"cancelOnRestart"`
}

// SearchSettings holds the Google Custom Search credentials used for title
// discovery.
type SearchSettings struct {
	APIKey   string `json:"apiKey"`
	EngineID string `json:"engineId"`
}

// ProxySettings defines an optional outbound proxy for geo-blocked services.
type ProxySettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Protocol string `json:"protocol"`
}

// TransmuxSettings locates the external media tools.
type TransmuxSettings struct {
	FFmpegPath  string `json:"ffmpegPath"`
	FFprobePath string `json:"ffprobePath"`
}

// BlobSettings defines the upload target for finished artifacts.
type BlobSettings struct {
	Endpoint string `json:"endpoint"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 3000},
		Database: DatabaseSettings{Path: "cache/trailfetch.db"},
		Scratch:  ScratchSettings{Directory: filepath.Join(os.TempDir(), "trailfetch")},
		Worker:   WorkerSettings{Concurrency: 5},
		Search:   SearchSettings{APIKey: "", EngineID: ""},
		Proxy:    ProxySettings{Protocol: "http"},
		Transmux: TransmuxSettings{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"},
		Blob:     BlobSettings{Endpoint: "https://filebin.net"},
		Log: LogConfig{
			File:       "cache/logs/trailfetch.log",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
// Search credentials left empty in the file are backfilled from the
// GOOGLE_SEARCH_API_KEY / GOOGLE_SEARCH_ENGINE_ID environment variables.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return backfill(defaults), nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	s := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	return backfill(s), nil
}

func backfill(s Settings) Settings {
	if s.Search.APIKey == "" {
		s.Search.APIKey = os.Getenv("GOOGLE_SEARCH_API_KEY")
	}
	if s.Search.EngineID == "" {
		s.Search.EngineID = os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	}
	if s.Worker.Concurrency <= 0 {
		s.Worker.Concurrency = 5
	}
	return s
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
