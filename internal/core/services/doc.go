// Package services implements the driving port interfaces: ingestion,
// rewrite orchestration, rulesets, reviews, assembly, and the hash-chained
// audit log. Services hold the pipeline state machines and talk to storage
// and the LLM exclusively through driven ports.
package services
