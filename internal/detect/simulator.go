package detect

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/bddprobe/internal/driver"
)

// popupDetailScript inspects the topmost overlay-eligible container and pulls
// out its heading, leading text, and actionable controls.
const popupDetailScript = `(minW, minH, minZ, maxText) => {
	let top = null;
	let topZ = -1;
	document.querySelectorAll('*').forEach(el => {
		const style = getComputedStyle(el);
		const positioned = style.position === 'fixed' || style.position === 'absolute';
		const z = parseInt(style.zIndex) || 0;
		const dialog = el.getAttribute('role') === 'dialog' || el.hasAttribute('aria-modal');
		if (!dialog && !(positioned && z >= minZ)) return;
		if (style.display === 'none' || style.visibility === 'hidden') return;
		const rect = el.getBoundingClientRect();
		if (!dialog && (rect.width < minW || rect.height < minH)) return;
		if (rect.width >= window.innerWidth * 0.95 && rect.height >= window.innerHeight * 0.95) return;
		if (z >= topZ) { top = el; topZ = z; }
	});
	if (!top) return null;

	const heading = top.querySelector('h1, h2, h3, [class*="title"], [class*="header"]');
	const para = top.querySelector('p, [class*="content"], [class*="body"]');
	const buttons = [];
	top.querySelectorAll('button, [role="button"], input[type="submit"], a.btn, a[class*="button"]').forEach(b => {
		const text = (b.innerText || b.value || '').trim();
		if (!text || buttons.some(x => x.text === text)) return;
		buttons.push({text: text.substring(0, 60), type: b.tagName.toLowerCase()});
	});

	return {
		title: heading ? heading.innerText.trim().substring(0, maxText) : '',
		content: para ? para.innerText.trim().substring(0, maxText) : '',
		buttons: buttons,
	};
}`

// closePopupScript clicks the most plausible dismiss control of the topmost
// overlay. Returns whether anything was clicked.
const closePopupScript = `() => {
	const candidates = document.querySelectorAll(
		'[aria-label*="lose"], [class*="close"], [class*="dismiss"], [data-dismiss]');
	for (const el of candidates) {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) continue;
		el.click();
		return true;
	}
	for (const el of document.querySelectorAll('button')) {
		const text = (el.innerText || '').trim().toLowerCase();
		if (text === 'close' || text === 'cancel' || text === 'dismiss' || text === 'no thanks' || text === '×') {
			el.click();
			return true;
		}
	}
	return false;
}`

// Simulator runs one interaction against one candidate and reports what the
// page revealed. It never panics the run: every failure mode becomes a
// Failed outcome.
type Simulator struct {
	Driver          driver.Driver
	Thresholds      Thresholds
	HoverSettle     time.Duration
	ClickSettle     time.Duration
	CaptureEvidence bool
	Logger          *zap.Logger
}

func (s *Simulator) settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func failReason(err error) string {
	switch {
	case errors.Is(err, driver.ErrElementDetached):
		return "element detached"
	case errors.Is(err, driver.ErrActionTimeout), errors.Is(err, context.DeadlineExceeded):
		return "action timeout"
	default:
		return err.Error()
	}
}

// Simulate performs action against cand: snapshot the overlay DOM, act,
// wait for the page to settle, snapshot again, and report the appearances.
func (s *Simulator) Simulate(ctx context.Context, action Action, cand Candidate) InteractionOutcome {
	out := InteractionOutcome{Action: action, Trigger: cand.Descriptor}
	log := s.Logger.With(
		zap.String("action", string(action)),
		zap.String("selector", cand.Descriptor.Selector))

	before, err := CaptureFingerprint(ctx, s.Driver, s.Thresholds)
	if err != nil {
		out.Kind = OutcomeFailed
		out.FailReason = failReason(err)
		return out
	}

	startURL := s.Driver.CurrentURL()

	switch action {
	case ActionHover:
		err = s.Driver.Hover(ctx, cand.Descriptor.Selector)
		if err == nil {
			s.settle(ctx, s.HoverSettle)
		}
	case ActionClick:
		err = s.Driver.Click(ctx, cand.Descriptor.Selector)
		if err == nil {
			s.settle(ctx, s.ClickSettle)
		}
	}
	if err != nil {
		out.Kind = OutcomeFailed
		out.FailReason = failReason(err)
		log.Debug("interaction failed", zap.String("reason", out.FailReason))
		return out
	}

	// A click that navigated away revealed nothing on this page. Go back so
	// the remaining candidates still resolve.
	if action == ActionClick && s.Driver.CurrentURL() != startURL {
		if backErr := s.Driver.Back(ctx); backErr != nil {
			out.Kind = OutcomeFailed
			out.FailReason = "navigated away: " + failReason(backErr)
			return out
		}
		s.Driver.WaitStable(ctx, 2*time.Second)
		out.Kind = OutcomeNoChange
		return out
	}

	after, err := CaptureFingerprint(ctx, s.Driver, s.Thresholds)
	if err != nil {
		out.Kind = OutcomeFailed
		out.FailReason = failReason(err)
		return out
	}

	revealed := before.Diff(after)
	if action == ActionHover {
		// Hover menus matter for the links they expose.
		revealed = keepLinks(revealed)
	}
	if len(revealed) == 0 {
		out.Kind = OutcomeNoChange
		return out
	}

	out.Kind = OutcomeRevealed
	out.Revealed = revealed
	log.Debug("interaction revealed content", zap.Int("elements", len(revealed)))

	if action == ActionClick {
		s.describePopup(ctx, &out)
		if s.CaptureEvidence {
			if png, shotErr := s.Driver.Screenshot(ctx); shotErr == nil {
				out.EvidencePNG = png
			}
		}
		s.dismissPopup(ctx)
	}
	return out
}

func keepLinks(descs []ElementDescriptor) []ElementDescriptor {
	var links []ElementDescriptor
	for _, d := range descs {
		if d.Href() != "" && d.Text != "" {
			links = append(links, d)
		}
	}
	return links
}

func (s *Simulator) describePopup(ctx context.Context, out *InteractionOutcome) {
	th := s.Thresholds
	v, err := s.Driver.Eval(ctx, popupDetailScript, th.OverlayMinWidth, th.OverlayMinHeight, th.OverlayMinZ, th.MaxTextLen)
	if err != nil || v.Nil() {
		return
	}
	out.PopupTitle = NormalizeText(v.Get("title").String())
	out.PopupContent = NormalizeText(v.Get("content").String())
	for _, b := range v.Get("buttons").Arr() {
		out.Buttons = append(out.Buttons, ActionButton{
			Text: NormalizeText(b.Get("text").String()),
			Type: b.Get("type").String(),
		})
	}
}

func (s *Simulator) dismissPopup(ctx context.Context) {
	if _, err := s.Driver.Eval(ctx, closePopupScript); err != nil {
		return
	}
	s.settle(ctx, 300*time.Millisecond)
}
