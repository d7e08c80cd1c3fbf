package enums

// AllocationOutcome summarizes how much of a credit note an allocation pass consumed.
type AllocationOutcome string

const (
	AllocationOutcomeFull    AllocationOutcome = "full"
	AllocationOutcomePartial AllocationOutcome = "partial"
	AllocationOutcomeNone    AllocationOutcome = "none"
)
