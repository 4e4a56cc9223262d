package gherkin

import (
	"fmt"
	"strings"
)

// Feature is a parsed Gherkin feature.
type Feature struct {
	Title      string
	Narrative  []string
	Background []string
	Scenarios  []Scenario
}

// Scenario is one Scenario block with its steps.
type Scenario struct {
	Title string
	Steps []string
}

var stepKeywords = []string{"Given ", "When ", "Then ", "And ", "But "}

func isStep(line string) bool {
	for _, kw := range stepKeywords {
		if strings.HasPrefix(line, kw) {
			return true
		}
	}
	return false
}

// Parse reads Gherkin feature text into its structure. It validates the
// shape a generated feature must have: exactly one Feature line, and every
// Scenario carrying at least one step.
func Parse(text string) (*Feature, error) {
	f := &Feature{}
	var current *Scenario
	inBackground := false

	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Feature:"):
			if f.Title != "" {
				return nil, fmt.Errorf("line %d: second Feature block", lineNo+1)
			}
			f.Title = strings.TrimSpace(strings.TrimPrefix(line, "Feature:"))

		case strings.HasPrefix(line, "Background:"):
			inBackground = true
			current = nil

		case strings.HasPrefix(line, "Scenario Outline:"):
			inBackground = false
			f.Scenarios = append(f.Scenarios, Scenario{
				Title: strings.TrimSpace(strings.TrimPrefix(line, "Scenario Outline:")),
			})
			current = &f.Scenarios[len(f.Scenarios)-1]

		case strings.HasPrefix(line, "Scenario:"):
			inBackground = false
			f.Scenarios = append(f.Scenarios, Scenario{
				Title: strings.TrimSpace(strings.TrimPrefix(line, "Scenario:")),
			})
			current = &f.Scenarios[len(f.Scenarios)-1]

		case isStep(line):
			switch {
			case inBackground:
				f.Background = append(f.Background, line)
			case current != nil:
				current.Steps = append(current.Steps, line)
			default:
				return nil, fmt.Errorf("line %d: step outside Background or Scenario", lineNo+1)
			}

		case strings.HasPrefix(line, "Examples:"), strings.HasPrefix(line, "|"):
			// Example tables ride along with the preceding scenario.

		default:
			if f.Title != "" && current == nil && !inBackground {
				f.Narrative = append(f.Narrative, line)
			}
		}
	}

	if f.Title == "" {
		return nil, fmt.Errorf("no Feature block found")
	}
	for _, sc := range f.Scenarios {
		if len(sc.Steps) == 0 {
			return nil, fmt.Errorf("scenario %q has no steps", sc.Title)
		}
	}
	return f, nil
}
