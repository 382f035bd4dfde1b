// Package logger provides the shared structured logger for the pipeline.
// The level is configured once via the FILLWISE_LOG_LEVEL environment
// variable (debug, info, warn, error); default is info.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	log  *slog.Logger
	once sync.Once

	mu  sync.RWMutex
	out io.Writer = os.Stderr
)

// Get returns the singleton slog logger.
func Get() *slog.Logger {
	once.Do(func() {
		level := slog.LevelInfo
		switch strings.ToLower(os.Getenv("FILLWISE_LOG_LEVEL")) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		mu.RLock()
		w := out
		mu.RUnlock()
		log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	})
	return log
}

// SetOutput redirects log output. Must be called before the first Get.
// Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}
