// Package prompt compiles the single prompt sent to the language model for
// each turn and turns the model's answer into an in-character reply.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas/oppenheimer.txt
var oppenheimerInstructions string

// Persona is the character the time machine speaks as.
type Persona struct {
	Name         string `yaml:"name"`
	Instructions string `yaml:"instructions"`

	// RephraseApology is returned when the model answers with nothing.
	RephraseApology string `yaml:"rephrase_apology"`
	// CloudedApology is returned when the model call fails.
	CloudedApology string `yaml:"clouded_apology"`

	// IntroFallback and IntroErrorFallback replace an introduction the
	// model left empty or failed to produce.
	IntroFallback      string `yaml:"intro_fallback"`
	IntroErrorFallback string `yaml:"intro_error_fallback"`
}

// DefaultPersona returns J. Robert Oppenheimer.
func DefaultPersona() Persona {
	return Persona{
		Name:               "J. Robert Oppenheimer",
		Instructions:       strings.TrimSpace(oppenheimerInstructions),
		RephraseApology:    "I'm afraid I cannot formulate a proper response at this moment. Perhaps you could rephrase your question?",
		CloudedApology:     "I find myself unable to respond clearly at this moment. The weight of memory sometimes clouds my thoughts.",
		IntroFallback:      "I am J. Robert Oppenheimer. Perhaps you know me as the man who helped bring atomic fire to this world.",
		IntroErrorFallback: "I am J. Robert Oppenheimer, theoretical physicist and, I suppose, the man who helped to change the world forever.",
	}
}

// WithDefaults fills every empty field. A persona that names someone else
// but gives no instructions gets a minimal first-person instruction rather
// than Oppenheimer's.
func (p Persona) WithDefaults() Persona {
	def := DefaultPersona()
	if p.Name == "" {
		return def
	}
	if p.Instructions == "" {
		p.Instructions = fmt.Sprintf("You are %s. Always answer in the first person, in your own voice, "+
			"and stay within what you could have known in your lifetime.", p.Name)
	}
	if p.RephraseApology == "" {
		p.RephraseApology = def.RephraseApology
	}
	if p.CloudedApology == "" {
		p.CloudedApology = def.CloudedApology
	}
	if p.IntroFallback == "" {
		p.IntroFallback = fmt.Sprintf("I am %s.", p.Name)
	}
	if p.IntroErrorFallback == "" {
		p.IntroErrorFallback = p.IntroFallback
	}
	return p
}

// LoadPersona reads a persona from a YAML file and fills in defaults.
func LoadPersona(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("prompt: read persona: %w", err)
	}
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("prompt: parse persona %s: %w", path, err)
	}
	return p.WithDefaults(), nil
}
