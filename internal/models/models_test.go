package models_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalMapPhrases(t *testing.T) {
	m := models.SignalMap{
		"0": {"0": {"leadership"}, "2": {"cross-functional  leadership", "leadership"}},
		"3": {"1": {"ｍentoring", " "}},
	}

	got := m.Phrases()
	want := []string{"cross-functional leadership", "leadership", "mentoring"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Phrases() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, m.Count())
}

func TestSignalMapMergeLaterWins(t *testing.T) {
	m := models.SignalMap{"1": {"0": {"first"}}}
	replaced := m.Merge(models.SignalMap{"1": {"3": {"second"}}, "2": {"0": {"other"}}})

	assert.Equal(t, []string{"1"}, replaced)
	assert.Equal(t, map[string][]string{"3": {"second"}}, m["1"])
	assert.Contains(t, m, "2")
}

func TestCheckPartition(t *testing.T) {
	names := []string{"Leadership", "Team Leadership", "Mentoring"}

	tests := []struct {
		name string
		set  models.CanonicalSet
		want models.PartitionReport
	}{
		{
			name: "exact partition",
			set: models.CanonicalSet{
				"Leadership": {Aliases: []string{"Leadership", "Team Leadership"}},
				"Mentoring":  {Aliases: []string{"Mentoring"}},
			},
		},
		{
			name: "missing and unknown",
			set: models.CanonicalSet{
				"Leadership": {Aliases: []string{"Leadership", "Team Leadership", "Vision"}},
			},
			want: models.PartitionReport{Missing: []string{"Mentoring"}, Unknown: []string{"Vision"}},
		},
		{
			name: "duplicated",
			set: models.CanonicalSet{
				"Leadership": {Aliases: []string{"Leadership", "Team Leadership"}},
				"Growth":     {Aliases: []string{"Mentoring", "Leadership"}},
			},
			want: models.PartitionReport{Duplicated: []string{"Leadership"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.set.CheckPartition(names)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CheckPartition() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.want.OK(), got.OK())
		})
	}
}

func TestCohort(t *testing.T) {
	assert.Equal(t, "True", models.CohortVP.String())
	assert.Equal(t, "False", models.CohortNonVP.String())

	for _, s := range []string{"vp", "True"} {
		c, err := models.ParseCohort(s)
		require.NoError(t, err)
		assert.Equal(t, models.CohortVP, c)
	}
	c, err := models.ParseCohort("non-vp")
	require.NoError(t, err)
	assert.Equal(t, models.CohortNonVP, c)

	_, err = models.ParseCohort("managers")
	assert.Error(t, err)
}

func TestEmployeeUnmarshalRecID(t *testing.T) {
	var emps []models.Employee
	data := `[{"rec_id": 12, "is_vp": true, "awards": [{"title": "Spot Award", "message": "Great demo."}]},
	          {"id": 4, "awards": []}]`
	require.NoError(t, json.Unmarshal([]byte(data), &emps))

	require.Len(t, emps, 2)
	assert.Equal(t, 12, emps[0].ID)
	assert.Equal(t, models.CohortVP, emps[0].Cohort())
	assert.Equal(t, "Spot Award", emps[0].Awards[0].Title)
	assert.Equal(t, 4, emps[1].ID)
	assert.False(t, emps[1].IsVP)
}

func TestGroupPresenceValid(t *testing.T) {
	assert.True(t, models.PresenceBoth.Valid())
	assert.True(t, models.PresenceTreatmentOnly.Valid())
	assert.True(t, models.PresenceControlOnly.Valid())
	assert.False(t, models.GroupPresence("vp_only").Valid())
}
