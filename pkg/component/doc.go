// Package component defines the executor's read-only view of the
// Component Service: a Loader interface for metadata and artifact bytes,
// plus an in-memory implementation for tests and single-process runs.
// The production Component Service is an external collaborator and out
// of scope for this module (§1).
package component
