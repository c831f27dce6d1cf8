package filter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DepartmentRules maps a department tag to category keywords used when no report carries
// the exact tag.
type DepartmentRules struct {
	keywords map[string][]string
}

type departmentRulesFile struct {
	Departments map[string][]string `yaml:"departments"`
}

// DefaultDepartmentRules returns the built-in keyword table.
func DefaultDepartmentRules() *DepartmentRules {
	return &DepartmentRules{keywords: map[string][]string{
		"water":       {"water", "plumbing", "drainage", "sewage"},
		"roads":       {"road", "street", "traffic"},
		"electricity": {"electric", "power", "light"},
	}}
}

// LoadDepartmentRules reads a YAML keyword table and merges it over the defaults.
// An empty path returns the defaults.
func LoadDepartmentRules(path string) (*DepartmentRules, error) {
	rules := DefaultDepartmentRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read department rules: %w", err)
	}
	if err := rules.merge(data); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *DepartmentRules) merge(data []byte) error {
	var file departmentRulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse department rules: %w", err)
	}
	for dept, words := range file.Departments {
		key := normalize(dept)
		if key == "" {
			return fmt.Errorf("parse department rules: empty department name")
		}
		cleaned := make([]string, 0, len(words))
		for _, w := range words {
			if w = normalize(w); w != "" {
				cleaned = append(cleaned, w)
			}
		}
		if len(cleaned) == 0 {
			return fmt.Errorf("parse department rules: department %q has no keywords", dept)
		}
		r.keywords[key] = cleaned
	}
	return nil
}

// Keywords returns the category keywords for a department. Departments without a rule
// match on their own name.
func (r *DepartmentRules) Keywords(department string) []string {
	key := normalize(department)
	if key == "" {
		return nil
	}
	if r != nil {
		if words, ok := r.keywords[key]; ok {
			return words
		}
	}
	return []string{key}
}

// MatchesCategory reports whether category contains any keyword of department.
func (r *DepartmentRules) MatchesCategory(department, category string) bool {
	cat := normalize(category)
	if cat == "" {
		return false
	}
	for _, word := range r.Keywords(department) {
		if strings.Contains(cat, word) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
