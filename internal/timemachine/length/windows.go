package length

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/timemachine/internal/timemachine/classify"
)

// Window is a base [Min, Max] character range.
type Window struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Windows maps each response type to its base window.
type Windows map[classify.ResponseType]Window

// UnmarshalYAML merges the decoded windows into w. Keys go through
// classify.ParseResponseType, so "factual" and "FACTUAL" name the same
// window; an unknown key is an error.
func (w *Windows) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]Window
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if *w == nil {
		*w = make(Windows, len(raw))
	}
	for key, win := range raw {
		t, ok := classify.ParseResponseType(key)
		if !ok {
			return fmt.Errorf("length: unknown response type %q in windows", key)
		}
		(*w)[t] = win
	}
	return nil
}

// DefaultWindows returns the built-in per-type table.
func DefaultWindows() Windows {
	return Windows{
		classify.Factual:       {Min: 150, Max: 350},
		classify.Philosophical: {Min: 400, Max: 700},
		classify.Narrative:     {Min: 500, Max: 900},
		classify.Personal:      {Min: 300, Max: 600},
		classify.Scientific:    {Min: 400, Max: 700},
		classify.Greeting:      {Min: 150, Max: 250},
	}
}

// Lookup returns the window for t, falling back to the built-in table.
func (w Windows) Lookup(t classify.ResponseType) Window {
	if win, ok := w[t]; ok {
		return win
	}
	if win, ok := DefaultWindows()[t]; ok {
		return win
	}
	return DefaultWindows()[classify.DefaultType]
}

// Scale returns a copy with every bound multiplied by f.
func (w Windows) Scale(f float64) Windows {
	out := make(Windows, len(w))
	for t, win := range w {
		out[t] = Window{
			Min: int(math.Round(float64(win.Min) * f)),
			Max: int(math.Round(float64(win.Max) * f)),
		}
	}
	return out
}

// Validate rejects unknown response types and non-positive or inverted
// windows.
func (w Windows) Validate() error {
	for t, win := range w {
		if canonical, ok := classify.ParseResponseType(string(t)); !ok || canonical != t {
			return fmt.Errorf("length: unknown response type %q in windows", t)
		}
		if win.Min <= 0 || win.Max <= 0 {
			return fmt.Errorf("length: window for %s must be positive, got %d-%d", t, win.Min, win.Max)
		}
		if win.Max < win.Min {
			return fmt.Errorf("length: window for %s has max %d < min %d", t, win.Max, win.Min)
		}
	}
	return nil
}
