package model

import "fmt"

// AvailabilityKind classifies the answer to "is this username/email free?".
type AvailabilityKind int

const (
	// AvailabilityUnknown means neither the local cache nor the API could
	// answer. Reason says why.
	AvailabilityUnknown AvailabilityKind = iota
	AvailabilityFree
	AvailabilityTaken
)

// Availability is the typed result of a username or email check.
type Availability struct {
	Kind   AvailabilityKind
	Reason string
}

// Available returns the result for a value nobody uses.
func Available() Availability { return Availability{Kind: AvailabilityFree} }

// Taken returns the result for a value already registered.
func Taken() Availability { return Availability{Kind: AvailabilityTaken} }

// Unknown returns an undetermined result with the given reason.
func Unknown(reason string) Availability {
	return Availability{Kind: AvailabilityUnknown, Reason: reason}
}

// IsAvailable reports whether the value is confirmed free.
func (a Availability) IsAvailable() bool { return a.Kind == AvailabilityFree }

// IsTaken reports whether the value is confirmed in use.
func (a Availability) IsTaken() bool { return a.Kind == AvailabilityTaken }

func (a Availability) String() string {
	switch a.Kind {
	case AvailabilityFree:
		return "available"
	case AvailabilityTaken:
		return "taken"
	default:
		if a.Reason == "" {
			return "unknown"
		}
		return fmt.Sprintf("unknown (%s)", a.Reason)
	}
}
