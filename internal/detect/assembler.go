package detect

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

type dedupKey struct {
	text string
	role Action
}

// Assemble builds the final analysis from raw simulation outcomes. Failed
// and NoChange outcomes are dropped, and outcomes whose triggers carry the
// same normalized text under the same action collapse to the first seen.
// Assembling the same input twice yields the same analysis.
func Assemble(runID, url, title string, hover, popups []InteractionOutcome, nav []NavLink, log *zap.Logger) *PageAnalysis {
	return &PageAnalysis{
		RunID:      runID,
		URL:        url,
		Title:      title,
		Hover:      dedupe(hover, log),
		Popups:     dedupe(popups, log),
		Navigation: nav,
		AnalyzedAt: time.Now().UTC(),
	}
}

func dedupe(outcomes []InteractionOutcome, log *zap.Logger) []InteractionOutcome {
	kept := make([]InteractionOutcome, 0, len(outcomes))
	seen := make(map[dedupKey]struct{}, len(outcomes))
	for _, o := range outcomes {
		if o.Kind != OutcomeRevealed {
			log.Debug("dropping outcome",
				zap.String("kind", string(o.Kind)),
				zap.String("selector", o.Trigger.Selector),
				zap.String("reason", o.FailReason))
			continue
		}
		key := dedupKey{text: triggerKey(o.Trigger), role: o.Action}
		if _, dup := seen[key]; dup {
			log.Debug("dropping duplicate trigger", zap.String("text", key.text))
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, o)
	}
	return kept
}

// triggerKey identifies a trigger across selector variants: two menu items
// with the same visible label are the same interaction. The selector is the
// fallback for unlabeled controls. Truncation counts runes, not bytes, so
// the key stays valid UTF-8 on non-ASCII labels.
func triggerKey(d ElementDescriptor) string {
	text := strings.ToLower(NormalizeText(d.Text))
	if runes := []rune(text); len(runes) > 30 {
		text = string(runes[:30])
	}
	if text == "" {
		return d.Selector
	}
	return text
}
