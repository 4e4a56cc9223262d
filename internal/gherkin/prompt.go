package gherkin

import (
	"encoding/json"
	"fmt"

	"github.com/v0xg/bddprobe/internal/detect"
)

const systemPrompt = `You are a senior QA automation engineer. Your task is to convert a web page interaction analysis into a Gherkin feature file for BDD testing.

You will receive a JSON analysis of a web page containing:
1. The page URL and title
2. Hover interactions: elements that reveal content (dropdown menus, tooltips) on hover, with the links they expose
3. Popup interactions: elements that open modals or popups on click, with the popup's title, content and buttons
4. The page's navigation structure

Write one complete Gherkin feature file covering the discovered behavior:
- One Feature block with a short narrative (As a / I want / So that)
- A Background navigating to the page URL
- One Scenario per hover interaction: hovering the trigger shows the revealed links
- One Scenario per popup interaction: clicking the trigger opens the popup, asserting its title and buttons where known
- A Scenario verifying the main navigation links are present

Guidelines:
- Use the exact visible text from the analysis in step quotes
- Keep steps in Given/When/Then/And form, one assertion per Then/And
- Do not invent interactions that are not in the analysis
- Do not use selectors or CSS in steps; refer to elements by their visible text

Respond ONLY with the Gherkin feature text, no explanation or markdown fences.`

func buildUserPrompt(analysis *detect.PageAnalysis) (string, error) {
	payload, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return fmt.Sprintf("Page analysis:\n\n%s\n\nGenerate the Gherkin feature file.", payload), nil
}
