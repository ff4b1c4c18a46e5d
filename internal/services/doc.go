// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and artifact names for
//     logging.
//   - Structured error markers plus the Wrap helper so stage failures can be
//     classified (capability missing vs tool failure vs configuration).
//   - The Executor abstraction that makes subprocess invocations testable.
package services
