// Package config provides configuration management for the Cutroom Agent.
// Defaults are layered under an optional YAML config file, which is layered
// under environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort     = 8799
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cutroom"

	// Environment variable names
	EnvPort       = "CUTROOM_PORT"
	EnvLogLevel   = "CUTROOM_LOG_LEVEL"
	EnvDataDir    = "CUTROOM_DATA_DIR"
	EnvConfigFile = "CUTROOM_CONFIG"

	// Collaborator service environment variable names
	EnvTranscriberURL = "CUTROOM_TRANSCRIBER_URL"
	EnvScriptGenURL   = "CUTROOM_SCRIPTGEN_URL"
	EnvExporterURL    = "CUTROOM_EXPORTER_URL"
	EnvServiceToken   = "CUTROOM_SERVICE_TOKEN"

	// Database filename
	DBFilename = "cutroom.db"

	// Config filename looked up inside the data directory when
	// EnvConfigFile is not set
	ConfigFilename = "config.yaml"

	// Collaborator call timeouts (seconds)
	DefaultTranscribeTimeout = 1800
	DefaultScriptGenTimeout  = 300
	DefaultExportTimeout     = 120

	// Timeline defaults
	DefaultExportFPS     = 24
	DefaultTargetMinutes = 10
	DefaultProjectName   = "Untitled Project"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	TranscriberURL() string
	ScriptGenURL() string
	ExporterURL() string
	ServiceToken() string
	TranscribeTimeout() time.Duration
	ScriptGenTimeout() time.Duration
	ExportTimeout() time.Duration
	ExportFPS() int
}

// fileConfig is the YAML config file shape. Every field is optional;
// zero values fall through to the defaults.
type fileConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`
	Services struct {
		Transcriber string `yaml:"transcriber_url"`
		ScriptGen   string `yaml:"scriptgen_url"`
		Exporter    string `yaml:"exporter_url"`
		Token       string `yaml:"token"`
	} `yaml:"services"`
	Timeouts struct {
		TranscribeS int `yaml:"transcribe_s"`
		ScriptGenS  int `yaml:"scriptgen_s"`
		ExportS     int `yaml:"export_s"`
	} `yaml:"timeouts"`
	ExportFPS int `yaml:"export_fps"`
}

// EnvConfig reads configuration from the config file and environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	transcriberURL string
	scriptGenURL   string
	exporterURL    string
	serviceToken   string

	transcribeTimeout time.Duration
	scriptGenTimeout  time.Duration
	exportTimeout     time.Duration
	exportFPS         int
}

// New creates a new EnvConfig with defaults, config file values, and
// environment variable overrides applied in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:              DefaultPort,
		logLevel:          DefaultLogLevel,
		dataDir:           defaultDataDir(),
		transcribeTimeout: DefaultTranscribeTimeout * time.Second,
		scriptGenTimeout:  DefaultScriptGenTimeout * time.Second,
		exportTimeout:     DefaultExportTimeout * time.Second,
		exportFPS:         DefaultExportFPS,
	}

	if err := cfg.applyFile(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *EnvConfig) applyFile() error {
	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		// The env data dir must steer the implicit lookup even though
		// env overrides are applied after the file layer.
		dir := c.dataDir
		if dd := os.Getenv(EnvDataDir); dd != "" {
			dir = dd
		}
		path = filepath.Join(dir, ConfigFilename)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		if os.IsNotExist(err) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.Services.Transcriber != "" {
		c.transcriberURL = fc.Services.Transcriber
	}
	if fc.Services.ScriptGen != "" {
		c.scriptGenURL = fc.Services.ScriptGen
	}
	if fc.Services.Exporter != "" {
		c.exporterURL = fc.Services.Exporter
	}
	if fc.Services.Token != "" {
		c.serviceToken = fc.Services.Token
	}
	if fc.Timeouts.TranscribeS > 0 {
		c.transcribeTimeout = time.Duration(fc.Timeouts.TranscribeS) * time.Second
	}
	if fc.Timeouts.ScriptGenS > 0 {
		c.scriptGenTimeout = time.Duration(fc.Timeouts.ScriptGenS) * time.Second
	}
	if fc.Timeouts.ExportS > 0 {
		c.exportTimeout = time.Duration(fc.Timeouts.ExportS) * time.Second
	}
	if fc.ExportFPS > 0 {
		c.exportFPS = fc.ExportFPS
	}

	return nil
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}

	if u := os.Getenv(EnvTranscriberURL); u != "" {
		c.transcriberURL = u
	}
	if u := os.Getenv(EnvScriptGenURL); u != "" {
		c.scriptGenURL = u
	}
	if u := os.Getenv(EnvExporterURL); u != "" {
		c.exporterURL = u
	}
	if t := os.Getenv(EnvServiceToken); t != "" {
		c.serviceToken = t
	}

	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// TranscriberURL returns the transcription service base URL, or empty
// when the local stub should be used instead.
func (c *EnvConfig) TranscriberURL() string {
	return c.transcriberURL
}

// ScriptGenURL returns the script-generation service base URL, or empty
// when the local stub should be used instead.
func (c *EnvConfig) ScriptGenURL() string {
	return c.scriptGenURL
}

// ExporterURL returns the export service base URL, or empty when the
// local stub should be used instead.
func (c *EnvConfig) ExporterURL() string {
	return c.exporterURL
}

// ServiceToken returns the bearer token sent to collaborator services
func (c *EnvConfig) ServiceToken() string {
	return c.serviceToken
}

func (c *EnvConfig) TranscribeTimeout() time.Duration {
	return c.transcribeTimeout
}

func (c *EnvConfig) ScriptGenTimeout() time.Duration {
	return c.scriptGenTimeout
}

func (c *EnvConfig) ExportTimeout() time.Duration {
	return c.exportTimeout
}

// ExportFPS returns the frame rate used for EDL timecode math
func (c *EnvConfig) ExportFPS() int {
	return c.exportFPS
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
