package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/promosignal/internal/models"
	"gopkg.in/yaml.v3"
)

// loadEmployees reads an employees file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func loadEmployees(path string) ([]models.Employee, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read employees: %w", err)
	}

	var employees []models.Employee
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &employees)
	default:
		err = json.Unmarshal(data, &employees)
	}
	if err != nil {
		return nil, fmt.Errorf("parse employees %s: %w", path, err)
	}

	seen := make(map[int]bool, len(employees))
	for _, emp := range employees {
		if seen[emp.ID] {
			return nil, fmt.Errorf("duplicate employee id %d in %s", emp.ID, path)
		}
		seen[emp.ID] = true
	}
	return employees, nil
}
