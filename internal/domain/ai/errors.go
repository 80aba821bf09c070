package ai

import "github.com/rotisserie/eris"

var (
	// ErrQuotaExceeded indicates the provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = eris.New("ai quota exceeded")
	// ErrEmptyCompletion is returned when the provider answered with no content.
	ErrEmptyCompletion = eris.New("ai returned no content")
	ErrModelTimeout    = eris.New("ai completion timed out")
)
