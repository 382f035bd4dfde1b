package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/fillwise/fillwise/internal/core/domain"
)

// DefaultDirName is the per-user configuration directory.
const DefaultDirName = ".fillwise"

// fileConfig is the on-disk TOML shape. Durations are whole seconds so the
// file stays hand-editable.
type fileConfig struct {
	Ollama struct {
		BaseURL               string  `toml:"base_url"`
		Model                 string  `toml:"model"`
		TimeoutSeconds        int     `toml:"timeout_seconds"`
		MaxRetries            *int    `toml:"max_retries"`
		BreakerThreshold      int     `toml:"breaker_threshold"`
		BreakerTimeoutSeconds int     `toml:"breaker_timeout_seconds"`
		Temperature           *float64 `toml:"temperature"`
		MaxTokens             int     `toml:"max_tokens"`
	} `toml:"ollama"`

	Rewrite struct {
		TimeoutSeconds int `toml:"timeout_seconds"`
	} `toml:"rewrite"`

	Dirs struct {
		Upload string `toml:"upload"`
		Export string `toml:"export"`
		Rules  string `toml:"rules"`
		Data   string `toml:"data"`
		Inbox  string `toml:"inbox"`
	} `toml:"dirs"`

	Limits struct {
		MaxUploadMB      int      `toml:"max_upload_mb"`
		MaxDocumentPages int      `toml:"max_document_pages"`
		AllowedMimeTypes []string `toml:"allowed_mime_types"`
	} `toml:"limits"`
}

// Load reads configDir/config.toml, applies FILLWISE_* environment
// overrides, and fills any remaining zero values from the defaults. A
// missing file is not an error; an empty configDir means ~/.fillwise.
func Load(configDir string) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("resolve home dir: %w", err)
		}
		configDir = filepath.Join(home, DefaultDirName)
	}

	path := filepath.Join(configDir, "config.toml")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults plus env overrides.
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		applyFile(&cfg, fc)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Write saves the config back to configDir/config.toml, creating the
// directory when needed. Used by `fillwise config init`.
func Write(configDir string, cfg domain.Config) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var fc fileConfig
	fc.Ollama.BaseURL = cfg.OllamaBaseURL
	fc.Ollama.Model = cfg.OllamaModel
	fc.Ollama.TimeoutSeconds = int(cfg.OllamaTimeout / time.Second)
	fc.Ollama.MaxRetries = &cfg.MaxRetries
	fc.Ollama.BreakerThreshold = cfg.BreakerThreshold
	fc.Ollama.BreakerTimeoutSeconds = int(cfg.BreakerTimeout / time.Second)
	fc.Ollama.Temperature = &cfg.RewriteTemperature
	fc.Ollama.MaxTokens = cfg.MaxTokens
	fc.Rewrite.TimeoutSeconds = int(cfg.RewriteTimeout / time.Second)
	fc.Dirs.Upload = cfg.UploadDir
	fc.Dirs.Export = cfg.ExportDir
	fc.Dirs.Rules = cfg.RulesDir
	fc.Dirs.Data = cfg.DataDir
	fc.Dirs.Inbox = cfg.InboxDir
	fc.Limits.MaxUploadMB = cfg.MaxUploadMB
	fc.Limits.MaxDocumentPages = cfg.MaxDocumentPages
	fc.Limits.AllowedMimeTypes = cfg.AllowedMimeTypes

	data, err := toml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(configDir, "config.toml"), data, 0o600)
}

func applyFile(cfg *domain.Config, fc fileConfig) {
	setString(&cfg.OllamaBaseURL, fc.Ollama.BaseURL)
	setString(&cfg.OllamaModel, fc.Ollama.Model)
	setSeconds(&cfg.OllamaTimeout, fc.Ollama.TimeoutSeconds)
	if fc.Ollama.MaxRetries != nil {
		cfg.MaxRetries = *fc.Ollama.MaxRetries
	}
	setInt(&cfg.BreakerThreshold, fc.Ollama.BreakerThreshold)
	setSeconds(&cfg.BreakerTimeout, fc.Ollama.BreakerTimeoutSeconds)
	if fc.Ollama.Temperature != nil {
		cfg.RewriteTemperature = *fc.Ollama.Temperature
	}
	setInt(&cfg.MaxTokens, fc.Ollama.MaxTokens)
	setSeconds(&cfg.RewriteTimeout, fc.Rewrite.TimeoutSeconds)
	setString(&cfg.UploadDir, fc.Dirs.Upload)
	setString(&cfg.ExportDir, fc.Dirs.Export)
	setString(&cfg.RulesDir, fc.Dirs.Rules)
	setString(&cfg.DataDir, fc.Dirs.Data)
	setString(&cfg.InboxDir, fc.Dirs.Inbox)
	setInt(&cfg.MaxUploadMB, fc.Limits.MaxUploadMB)
	setInt(&cfg.MaxDocumentPages, fc.Limits.MaxDocumentPages)
	if len(fc.Limits.AllowedMimeTypes) > 0 {
		cfg.AllowedMimeTypes = fc.Limits.AllowedMimeTypes
	}
}

// applyEnv overrides the connection and directory settings most likely to
// differ per machine or CI run.
func applyEnv(cfg *domain.Config) {
	envString(&cfg.OllamaBaseURL, "FILLWISE_OLLAMA_BASE_URL")
	envString(&cfg.OllamaModel, "FILLWISE_OLLAMA_MODEL")
	envString(&cfg.UploadDir, "FILLWISE_UPLOAD_DIR")
	envString(&cfg.ExportDir, "FILLWISE_EXPORT_DIR")
	envString(&cfg.RulesDir, "FILLWISE_RULES_DIR")
	envString(&cfg.DataDir, "FILLWISE_DATA_DIR")
	envString(&cfg.InboxDir, "FILLWISE_INBOX_DIR")
	envInt(&cfg.MaxRetries, "FILLWISE_OLLAMA_MAX_RETRIES")
	envInt(&cfg.MaxUploadMB, "FILLWISE_MAX_UPLOAD_MB")
	envInt(&cfg.MaxDocumentPages, "FILLWISE_MAX_DOCUMENT_PAGES")
	envSeconds(&cfg.RewriteTimeout, "FILLWISE_REWRITE_TIMEOUT_SECONDS")
	envSeconds(&cfg.OllamaTimeout, "FILLWISE_OLLAMA_TIMEOUT_SECONDS")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v int) {
	if v > 0 {
		*dst = time.Duration(v) * time.Second
	}
}

func envString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}

func envSeconds(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = time.Duration(n) * time.Second
	}
}
