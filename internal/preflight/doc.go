// Package preflight provides readiness checks for the filesystem paths,
// external tools, and remote LLM that notesflow depends on.
//
// The CLI "notesflow status" command renders these results as a table. The
// LLM check spends one minimal request and is opt-in.
package preflight
