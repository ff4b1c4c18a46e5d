// Package submission sends text artifacts to the language model and stores
// the replies under claude_responses/.
//
// The API key is validated once per run; an invalid key skips the stage
// without failing the pipeline. Each artifact is sent once. A bad-request
// reply leaves an error record and triggers a single reduced retry. Other
// failures leave an error record with an excerpt of the offending text.
// Successful replies are stored as the raw JSON payload and as markdown.
package submission
