package reservation

// ConflictKind classifies an overlap between two configs.
type ConflictKind string

const (
	ConflictSameFacilityOverlap ConflictKind = "same-facility-overlap"
	ConflictSameTimeOtherPlace  ConflictKind = "same-time-different-facility"
	ConflictSameFacilityCrossed ConflictKind = "same-facility-different-sport"
)

// Severity orders conflicts for display. Conflicts are advisory only; they
// never block a run.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Conflict is a transient edit-time finding about a candidate config.
type Conflict struct {
	Kind     ConflictKind
	Severity Severity
	Message  string
	Details  []string
}
