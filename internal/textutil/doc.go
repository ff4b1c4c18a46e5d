// Package textutil provides the text clean-up helpers shared by the
// recognition and submission stages: Unicode normalization of recognized
// text, NUL stripping, and rune-safe truncation.
package textutil
