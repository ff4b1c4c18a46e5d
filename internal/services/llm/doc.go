// Package llm provides a chat-completion client for the remote language model
// that turns recognized note text into markdown.
//
// The endpoint is OpenAI-compatible (OpenRouter by default): a POST with a
// bearer token and `{model, messages, max_tokens?}`. Responses are decoded
// into a typed Response whose Content method fails with ErrMalformedResponse
// when the assistant message is missing. Non-2xx replies surface as
// *StatusError; IsBadRequest singles out the statuses that justify a smaller
// retry.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: one request, no automatic retries.
// Client.Probe: minimal request used to validate a credential.
//
// Retry and pacing policy belong to the caller (see internal/submission).
package llm
