package domain

import "time"

// Config holds runtime configuration for the pipeline. Values are loaded from
// the TOML config file with environment overrides; zero values fall back to
// the defaults below.
type Config struct {
	// Ollama connection.
	OllamaBaseURL string
	OllamaModel   string
	OllamaTimeout time.Duration

	// Retry and circuit breaker policy for the LLM client.
	MaxRetries       int
	BreakerThreshold int
	BreakerTimeout   time.Duration

	// Generation parameters.
	RewriteTemperature float64
	MaxTokens          int

	// Per-rewrite wall-clock budget for one token stream.
	RewriteTimeout time.Duration

	// Directories.
	UploadDir string
	ExportDir string
	RulesDir  string
	DataDir   string
	InboxDir  string

	// Ingestion limits.
	MaxUploadMB      int
	MaxDocumentPages int
	AllowedMimeTypes []string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		OllamaBaseURL:      "http://127.0.0.1:11434",
		OllamaModel:        "ministral:3b",
		OllamaTimeout:      120 * time.Second,
		MaxRetries:         3,
		BreakerThreshold:   5,
		BreakerTimeout:     60 * time.Second,
		RewriteTemperature: 0.1,
		MaxTokens:          1500,
		RewriteTimeout:     300 * time.Second,
		UploadDir:          "./uploads",
		ExportDir:          "./exports",
		RulesDir:           "./rules",
		InboxDir:           "./inbox",
		MaxUploadMB:        50,
		MaxDocumentPages:   100,
		AllowedMimeTypes: []string{
			MimePDF,
			MimeDOCX,
		},
	}
}

// MIME types accepted for upload.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)
