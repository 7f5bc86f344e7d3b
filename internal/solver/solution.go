package solver

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Value is the optimal value of one variable.
type Value struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
}

// Solution is an optimal solution. Values follow the variable order of the
// problem.
type Solution struct {
	Backend   string        `yaml:"backend"`
	Problem   string        `yaml:"problem"`
	Status    Status        `yaml:"status"`
	Objective float64       `yaml:"objective"`
	Elapsed   time.Duration `yaml:"elapsed"`
	Values    []Value       `yaml:"values"`
}

// Value returns the value of a variable.
func (s *Solution) Value(name string) (float64, bool) {
	for _, v := range s.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// WriteYAML encodes the solution.
func (s *Solution) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode solution: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the solution as YAML to path.
func (s *Solution) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
