// Package driving defines the service interfaces exposed to the CLI and
// watcher. Implementations live in internal/core/services.
package driving
