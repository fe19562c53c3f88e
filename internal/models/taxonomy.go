package models

// Taxonomy maps each canonical category name to its summary. Keys are unique;
// when both cohorts define a name, the VP summary is kept.
type Taxonomy map[string]string

// GroupPresence says which cohorts a difference category was observed in.
type GroupPresence string

// Group presence values.
const (
	PresenceBoth          GroupPresence = "both_groups"
	PresenceTreatmentOnly GroupPresence = "treatment_only"
	PresenceControlOnly   GroupPresence = "control_only"
)

// Valid reports whether p is one of the defined values.
func (p GroupPresence) Valid() bool {
	switch p {
	case PresenceBoth, PresenceTreatmentOnly, PresenceControlOnly:
		return true
	}
	return false
}

// DiffCategory is one category of the treatment/control comparison.
type DiffCategory struct {
	Aliases       []string      `json:"aliases"`
	Summary       string        `json:"summary"`
	GroupPresence GroupPresence `json:"group_presence"`
}

// Difference maps category names to comparison categories.
type Difference map[string]DiffCategory
