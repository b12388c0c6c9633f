package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ErrUnknownScenario is returned by ApplyScenario for an unknown name.
var ErrUnknownScenario = errors.New("config: unknown scenario")

// Scenario is a named preset for the budget and response lengths.
type Scenario struct {
	Name          string
	Description   string
	MaxDailyChars int64
	// WindowScale multiplies every window bound.
	WindowScale float64
}

var scenarios = map[string]Scenario{
	"demonstration": {Name: "demonstration", Description: "Short demo with cost control", MaxDailyChars: 10_000, WindowScale: 0.7},
	"educational":   {Name: "educational", Description: "Balanced education use", MaxDailyChars: 30_000, WindowScale: 1.0},
	"research":      {Name: "research", Description: "Detailed research conversations", MaxDailyChars: 80_000, WindowScale: 1.3},
	"production":    {Name: "production", Description: "Cost-optimized production use", MaxDailyChars: 20_000, WindowScale: 0.8},
}

// Scenarios returns the built-in scenarios sorted by name.
func Scenarios() []Scenario {
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func scenarioNames() string {
	var names []string
	for _, s := range Scenarios() {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

// ApplyScenario sets the scenario's character cap and rescales every
// window by its multiplier. Each call rescales the current windows, so it
// is meant to run once at start.
func (c *Config) ApplyScenario(name string) error {
	s, ok := scenarios[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("%w %q (available: %s)", ErrUnknownScenario, name, scenarioNames())
	}
	c.Scenario = s.Name
	c.Budget.MaxDailyChars = s.MaxDailyChars
	c.Length.Windows = c.Length.Windows.Scale(s.WindowScale)
	slog.Info("config: applied scenario", "scenario", s.Name, "description", s.Description,
		"max_daily_chars", s.MaxDailyChars, "window_scale", s.WindowScale)
	return nil
}
