package gherkin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/bddprobe/internal/cache"
	"github.com/v0xg/bddprobe/internal/detect"
)

// Generator produces feature text for analyses, caching results per analysis
// content so repeated runs against an unchanged page cost nothing.
type Generator struct {
	provider Provider
	cache    *cache.Cache[string]
	log      *zap.Logger
}

// NewGenerator builds a Generator. provider may be nil, in which case every
// feature comes from the deterministic template.
func NewGenerator(provider Provider, responseCache *cache.Cache[string], log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if responseCache == nil {
		responseCache = cache.New[string](32)
	}
	return &Generator{provider: provider, cache: responseCache, log: log}
}

// Generate returns Gherkin feature text for the analysis. Provider failures
// degrade to the template; an analysis always yields a feature.
func (g *Generator) Generate(ctx context.Context, analysis *detect.PageAnalysis) (string, error) {
	key := analysisKey(analysis)
	if text, ok := g.cache.Get(key); ok {
		g.log.Debug("feature served from cache", zap.String("url", analysis.URL))
		return text, nil
	}

	var text string
	if g.provider != nil {
		generated, err := g.provider.GenerateFeature(ctx, analysis)
		if err != nil {
			g.log.Warn("provider generation failed, falling back to template", zap.Error(err))
		} else if _, parseErr := Parse(generated); parseErr != nil {
			g.log.Warn("provider returned unparseable feature, falling back to template",
				zap.Error(parseErr))
		} else {
			text = generated
		}
		// A fallback produced by a provider failure is served but not
		// cached, so the provider gets retried on the next request for
		// this page.
		if text == "" {
			return FallbackFeature(analysis), nil
		}
	} else {
		text = FallbackFeature(analysis)
	}

	g.cache.Set(key, text)
	return text, nil
}

// analysisKey fingerprints what generation actually depends on: the page
// identity and the de-duplicated trigger texts. Run IDs and timestamps are
// excluded so identical analyses from different runs share a cache entry.
func analysisKey(a *detect.PageAnalysis) string {
	h := sha256.New()
	fmt.Fprintln(h, a.URL)
	fmt.Fprintln(h, a.Title)
	for _, o := range a.Hover {
		fmt.Fprintln(h, "h", o.Trigger.Text, len(o.Revealed))
	}
	for _, o := range a.Popups {
		fmt.Fprintln(h, "p", o.Trigger.Text, o.PopupTitle, len(o.Buttons))
	}
	for _, n := range a.Navigation {
		fmt.Fprintln(h, "n", n.Text, n.Href)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// stripFences removes a wrapping markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// FallbackFeature renders a deterministic feature from the analysis alone.
func FallbackFeature(a *detect.PageAnalysis) string {
	var b strings.Builder

	title := a.Title
	if title == "" {
		title = a.URL
	}
	fmt.Fprintf(&b, "Feature: Interactive behavior of %s\n", title)
	b.WriteString("  As a site visitor\n")
	b.WriteString("  I want interactive elements to respond to my actions\n")
	b.WriteString("  So that I can access the content they reveal\n\n")

	b.WriteString("  Background:\n")
	fmt.Fprintf(&b, "    Given I open \"%s\"\n", a.URL)

	for _, o := range a.Hover {
		label := triggerLabel(o.Trigger)
		fmt.Fprintf(&b, "\n  Scenario: Hovering \"%s\" reveals its menu\n", label)
		fmt.Fprintf(&b, "    When I hover over \"%s\"\n", label)
		for i, r := range o.Revealed {
			word := "Then"
			if i > 0 {
				word = "And"
			}
			fmt.Fprintf(&b, "    %s I should see a link \"%s\"\n", word, r.Text)
		}
	}

	for _, o := range a.Popups {
		label := triggerLabel(o.Trigger)
		fmt.Fprintf(&b, "\n  Scenario: Clicking \"%s\" opens a popup\n", label)
		fmt.Fprintf(&b, "    When I click \"%s\"\n", label)
		b.WriteString("    Then a popup should appear\n")
		if o.PopupTitle != "" {
			fmt.Fprintf(&b, "    And the popup title should be \"%s\"\n", o.PopupTitle)
		}
		for _, btn := range o.Buttons {
			fmt.Fprintf(&b, "    And the popup should contain a \"%s\" button\n", btn.Text)
		}
	}

	if len(a.Navigation) > 0 {
		b.WriteString("\n  Scenario: Main navigation is present\n")
		for i, n := range a.Navigation {
			word := "Then"
			if i > 0 {
				word = "And"
			}
			fmt.Fprintf(&b, "    %s I should see a navigation link \"%s\"\n", word, n.Text)
		}
	}

	return b.String()
}

func triggerLabel(d detect.ElementDescriptor) string {
	if d.Text != "" {
		return d.Text
	}
	if label := d.Attributes["aria-label"]; label != "" {
		return label
	}
	return d.Selector
}
