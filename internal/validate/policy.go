package validate

import "fmt"

// Range is an inclusive integer bound.
type Range struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}

// Policy holds the numeric business rules a generated program must satisfy.
// The same values are stated in the prompt and enforced by the Validator.
type Policy struct {
	Sets                Range `yaml:"sets" json:"sets"`
	Reps                Range `yaml:"reps" json:"reps"`
	RestSeconds         Range `yaml:"rest_seconds" json:"rest_seconds"`
	ExercisesPerSession Range `yaml:"exercises_per_session" json:"exercises_per_session"`
}

// DefaultPolicy returns the standard hypertrophy-oriented bounds.
func DefaultPolicy() Policy {
	return Policy{
		Sets:                Range{Min: 3, Max: 4},
		Reps:                Range{Min: 8, Max: 12},
		RestSeconds:         Range{Min: 30, Max: 90},
		ExercisesPerSession: Range{Min: 1, Max: 6},
	}
}

// Check reports the first inconsistent bound, if any.
func (p Policy) Check() error {
	checks := []struct {
		name string
		r    Range
	}{
		{"sets", p.Sets},
		{"reps", p.Reps},
		{"rest_seconds", p.RestSeconds},
		{"exercises_per_session", p.ExercisesPerSession},
	}
	for _, c := range checks {
		if c.r.Min <= 0 || c.r.Max < c.r.Min {
			return fmt.Errorf("policy.%s: invalid range %s", c.name, c.r)
		}
	}
	return nil
}
