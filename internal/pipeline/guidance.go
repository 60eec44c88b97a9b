package pipeline

import "strings"

// User-facing messages for a failed composition.
const (
	APIKeyGuidance  = "The assistant could not authenticate with the language model service. Please check that the API key is configured correctly."
	ModelGuidance   = "The configured language model is unavailable. Please check the model setting and choose a model your API key can access."
	GenericGuidance = "Sorry, something went wrong while generating an answer. Please try again in a moment."
)

// Guidance picks the caller-visible message for a composition error by
// matching known fragments of its text.
func Guidance(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"):
		return APIKeyGuidance
	case strings.Contains(msg, "model"):
		return ModelGuidance
	default:
		return GenericGuidance
	}
}
