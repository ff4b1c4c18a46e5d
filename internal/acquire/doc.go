// Package acquire exports raw note documents into the output root.
//
// ScriptExporter drives the platform export script through an Executor;
// DirectoryExporter imports from a local folder. Both leave images under
// images/ and list other documents in the manifest consumed by normalize.
package acquire
