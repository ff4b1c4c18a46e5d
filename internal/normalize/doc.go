// Package normalize rasterizes acquired documents into page images.
//
// Each manifest entry goes through a fallback chain: pdftoppm renders every
// page at the configured scale; if that fails or is not installed, the
// embedded scan of every page is extracted with pdfcpu and resampled; if
// that also fails, a text placeholder stands in for the document so the
// later stages still see it. Output names are {base}.png for single-page
// documents and {base}_page{N}.png otherwise.
package normalize
