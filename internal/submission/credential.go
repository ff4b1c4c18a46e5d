package submission

import (
	"context"
	"strings"
	"unicode/utf8"
)

// CredentialState tracks validation of the API key for one run.
type CredentialState int

const (
	Unvalidated CredentialState = iota
	Validating
	Valid
	Invalid
)

func (s CredentialState) String() string {
	switch s {
	case Validating:
		return "validating"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unvalidated"
	}
}

// validateCredential moves the submitter from Unvalidated to Valid or
// Invalid. Keys that fail the local shape check never reach the network.
func (s *Submitter) validateCredential(ctx context.Context) (CredentialState, string) {
	key := strings.TrimSpace(s.apiKey)
	switch {
	case key == "":
		return Invalid, "api key missing"
	case utf8.RuneCountInString(key) < s.settings.MinKeyLength:
		return Invalid, "api key too short"
	}
	s.state = Validating
	if err := s.client.Probe(ctx); err != nil {
		return Invalid, err.Error()
	}
	return Valid, ""
}
