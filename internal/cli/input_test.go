package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEmployees(t *testing.T) {
	want := []models.Employee{
		{ID: 12, IsVP: true, Awards: []models.AwardRecord{{Title: "Spot Award", Message: "Led the migration."}}},
		{ID: 13, Awards: []models.AwardRecord{{Title: "Thanks", Message: "Great job."}}},
	}

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "employees.json",
			content: `[
				{"id": 12, "is_vp": true, "awards": [{"title": "Spot Award", "message": "Led the migration."}]},
				{"rec_id": 13, "awards": [{"title": "Thanks", "message": "Great job."}]}
			]`,
		},
		{
			name: "yaml",
			file: "employees.yaml",
			content: `- id: 12
  is_vp: true
  awards:
    - title: Spot Award
      message: Led the migration.
- id: 13
  awards:
    - title: Thanks
      message: Great job.
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadEmployees(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadEmployeesErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "duplicate id", file: "e.json", content: `[{"id": 1}, {"id": 1}]`},
		{name: "not a list", file: "e.json", content: `{"id": 1}`},
		{name: "bad yaml", file: "e.yml", content: "- id: [1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadEmployees(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := loadEmployees(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
