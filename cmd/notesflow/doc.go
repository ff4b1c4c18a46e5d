// Command notesflow exports handwritten notes, rasterizes and recognizes
// their pages, and asks a language model to turn the text into markdown.
//
// Subcommands:
//
//	run       one pass over the output root (acquire, normalize, recognize, submit)
//	status    external tools, paths, and credential readiness
//	history   recent runs from the SQLite run ledger
//	config    init and validate the TOML configuration
//
// Only setup, lock, and acquisition failures make run exit non-zero; later
// stages degrade and are reported in the summary table.
package main
