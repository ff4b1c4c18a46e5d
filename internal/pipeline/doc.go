// Package pipeline orchestrates one notesflow run over an output root.
//
// Stages run strictly in sequence, each consuming the complete output of
// the previous one:
//
//	acquire -> normalize (only when a manifest exists) -> recognition -> submission
//
// A file lock on the output root admits one run at a time. Acquisition and
// setup failures stop the run; every later stage reports its outcome in the
// Summary and the run continues. Outcomes are written to the history ledger
// when a Recorder is configured.
package pipeline
