// types.go
package segment

// Kind tells whether a segment is shown as a static label or resolved as an entity identifier
type Kind int

const (
	Label Kind = iota
	Identifier
)

func (k Kind) String() string {
	switch k {
	case Label:
		return "Label"
	case Identifier:
		return "Identifier"
	default:
		return "UnknownKind"
	}
}

// EntityType is the closed set of entities whose names can be looked up
type EntityType int

const (
	Unknown EntityType = iota
	Facility
	Patient
	Encounter
)

// EntityTypes lists every resolvable entity type
var EntityTypes = []EntityType{Facility, Patient, Encounter}

func (e EntityType) String() string {
	switch e {
	case Facility:
		return "facility"
	case Patient:
		return "patient"
	case Encounter:
		return "encounter"
	default:
		return "unknown"
	}
}

// Segment is one classified token of a path
type Segment struct {
	Raw    string     `json:"raw"`
	Kind   Kind       `json:"kind"`
	Entity EntityType `json:"entity,omitempty"`
	ID     string     `json:"id,omitempty"`
	Label  string     `json:"label,omitempty"` // Display text for Label segments
}

// IsIdentifier reports whether the segment must be resolved through a name lookup
func (s Segment) IsIdentifier() bool {
	return s.Kind == Identifier
}
