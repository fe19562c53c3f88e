// Package models defines the data structures that flow through the award
// signal pipeline.
package models

import (
	"encoding/json"
	"fmt"
)

// AwardRecord is one recognition message received by an employee.
type AwardRecord struct {
	Title   string `json:"title" yaml:"title"`
	Message string `json:"message" yaml:"message"`
}

// Employee is the unit of per-employee processing. Awards are ordered; an
// award's position in the slice is its award index.
type Employee struct {
	ID     int           `json:"id" yaml:"id"`
	Awards []AwardRecord `json:"awards" yaml:"awards"`
	IsVP   bool          `json:"is_vp" yaml:"is_vp"`
}

// Cohort returns the group the employee belongs to.
func (e Employee) Cohort() Cohort {
	return Cohort(e.IsVP)
}

// UnmarshalJSON accepts rec_id as an alias for id, matching the HR export.
func (e *Employee) UnmarshalJSON(data []byte) error {
	type plain Employee
	aux := struct {
		plain
		RecID *int `json:"rec_id"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Employee(aux.plain)
	if aux.RecID != nil {
		e.ID = *aux.RecID
	}
	return nil
}

// Cohort partitions employees: true is the VP-promoted treatment group,
// false the non-VP control group.
type Cohort bool

// Cohorts in processing order. VP comes first wherever order matters.
const (
	CohortVP    Cohort = true
	CohortNonVP Cohort = false
)

// String returns the directory label used for cohort-scoped artifacts.
func (c Cohort) String() string {
	if c {
		return "True"
	}
	return "False"
}

// Slug returns a lowercase identifier for logs and stage names.
func (c Cohort) Slug() string {
	if c {
		return "vp"
	}
	return "non-vp"
}

// ParseCohort parses "vp"/"non-vp" or the directory labels "True"/"False".
func ParseCohort(s string) (Cohort, error) {
	switch s {
	case "vp", "True", "true":
		return CohortVP, nil
	case "non-vp", "nonvp", "False", "false":
		return CohortNonVP, nil
	default:
		return false, fmt.Errorf("unknown cohort %q", s)
	}
}
