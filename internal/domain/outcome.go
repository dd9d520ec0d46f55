package domain

import "fmt"

// OutcomeKind classifies a delivery attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means the endpoint acknowledged the batch with a 2xx status.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure means the attempt definitely did not deliver: the
	// session could not be established or the endpoint answered non-2xx.
	OutcomeFailure
	// OutcomeAmbiguous means the request may have reached the endpoint but no
	// parseable response arrived within the bounded wait.
	OutcomeAmbiguous
)

// String returns a human-readable name for the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Kind OutcomeKind

	// StatusCode is the parsed response status, zero when none was parsed.
	StatusCode int

	// Reason describes a failure in a form suitable for logs.
	Reason string

	// Err is the underlying transport error, if any.
	Err error
}

// Succeeded constructs a success outcome.
func Succeeded(status int) Outcome {
	return Outcome{Kind: OutcomeSuccess, StatusCode: status}
}

// Failed constructs a failure outcome.
func Failed(status int, reason string, err error) Outcome {
	return Outcome{Kind: OutcomeFailure, StatusCode: status, Reason: reason, Err: err}
}

// Ambiguous constructs an ambiguous outcome.
func Ambiguous(reason string, err error) Outcome {
	return Outcome{Kind: OutcomeAmbiguous, Reason: reason, Err: err}
}

// OK returns true only for an unambiguous success.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Responded reports whether the endpoint answered with a parsed status. A
// failure without a status means the transport itself is unhealthy.
func (o Outcome) Responded() bool {
	return o.StatusCode != 0
}

// String formats the outcome for logs.
func (o Outcome) String() string {
	switch {
	case o.Kind == OutcomeSuccess && o.StatusCode == 0:
		return "success"
	case o.Kind == OutcomeSuccess:
		return fmt.Sprintf("success (%d)", o.StatusCode)
	case o.StatusCode != 0:
		return fmt.Sprintf("%s (%d): %s", o.Kind, o.StatusCode, o.Reason)
	default:
		return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
	}
}
