// Package triage provides the business boundary for alert triage. It defines
// the Service (per-incident orchestration: dedup, enrich, redact, classify,
// act), the Memory over a pluggable Store (dedup ledger), the Classifier, the
// Cases lifecycle manager, and the collaborator interfaces the pipeline drives.
package triage
