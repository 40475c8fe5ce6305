// Package preprocess holds the feature encoders shared by training and serving.
package preprocess

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"cine-match/logging"
)

// ErrUnseenLabel is returned when a value was not present at fit time.
var ErrUnseenLabel = errors.New("unseen label")

// LabelEncoder maps categorical values to dense integer ids. Classes are sorted,
// so the id of a value is its rank among the distinct fitted values.
type LabelEncoder struct {
	Name    string   `json:"name"`
	Classes []string `json:"classes"`

	mu    sync.Mutex
	index map[string]int
}

// NewLabelEncoder returns an unfitted encoder; name is used in log messages.
func NewLabelEncoder(name string) *LabelEncoder {
	return &LabelEncoder{Name: name}
}

// Fit learns the distinct values.
func (e *LabelEncoder) Fit(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)
	e.mu.Lock()
	e.Classes = classes
	e.index = nil
	e.mu.Unlock()
	return e
}

// FitTransform fits and returns the ids of values.
func (e *LabelEncoder) FitTransform(values []string) []int {
	e.Fit(values)
	ids := make([]int, len(values))
	for i, v := range values {
		ids[i], _ = e.Transform(v)
	}
	return ids
}

// lookup builds the value index on first use, so decoded encoders work too.
// The returned map is never written after it is built.
func (e *LabelEncoder) lookup() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		e.index = make(map[string]int, len(e.Classes))
		for i, c := range e.Classes {
			e.index[c] = i
		}
	}
	return e.index
}

// Transform returns the id of value or ErrUnseenLabel.
func (e *LabelEncoder) Transform(value string) (int, error) {
	id, ok := e.lookup()[value]
	if !ok {
		return 0, fmt.Errorf("%w %q for %s", ErrUnseenLabel, value, e.Name)
	}
	return id, nil
}

// TransformOrDefault returns the id of value, falling back to 0 with a warning.
func (e *LabelEncoder) TransformOrDefault(value string) int {
	id, err := e.Transform(value)
	if err != nil {
		logging.Warn().Str("column", e.Name).Str("value", value).Msg("Unseen label, defaulting to the first label")
		return 0
	}
	return id
}

// InverseTransform returns the value for id.
func (e *LabelEncoder) InverseTransform(id int) (string, error) {
	if id < 0 || id >= len(e.Classes) {
		return "", fmt.Errorf("label id %d out of range for %s (%d classes)", id, e.Name, len(e.Classes))
	}
	return e.Classes[id], nil
}

// Len is the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.Classes)
}
