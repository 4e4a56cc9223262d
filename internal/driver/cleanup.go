package driver

import (
	"context"
	"time"
)

// dismissScript finds fixed high z-order overlays whose text suggests a
// cookie/consent banner and clicks their accept/close control. It returns
// true if it clicked something.
const dismissScript = `() => {
	const all = document.querySelectorAll('*');

	for (const el of all) {
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();

		const isOverlay = (
			(style.position === 'fixed' || style.position === 'sticky') &&
			parseInt(style.zIndex) > 100 &&
			rect.width > 100 && rect.height > 30
		);
		if (!isOverlay) continue;

		const text = (el.textContent || '').toLowerCase();
		const isBanner = text.includes('cookie') || text.includes('consent') ||
			text.includes('privacy') || text.includes('gdpr');
		if (!isBanner) continue;

		const buttons = el.querySelectorAll('button, a, [role="button"], [tabindex]');
		for (const btn of buttons) {
			const btnText = (btn.textContent || '').toLowerCase();
			const aria = (btn.getAttribute('aria-label') || '').toLowerCase();
			if (btnText.includes('accept') || btnText.includes('agree') ||
				btnText.includes('allow') || btnText.includes('got it') ||
				btnText.includes('continue') || btnText.includes('close') ||
				aria.includes('accept') || aria.includes('close')) {
				btn.click();
				return true;
			}
		}

		const closeBtn = el.querySelector('[aria-label*="close" i], [aria-label*="dismiss" i], [class*="close"]');
		if (closeBtn) {
			closeBtn.click();
			return true;
		}
	}
	return false;
}`

// hideLeftoverScript force-hides consent overlays that survived dismissal and
// would otherwise intercept pointer events during simulation.
const hideLeftoverScript = `() => {
	const leftovers = document.querySelectorAll('[class*="consent"], [class*="cookie"], [id*="consent"], [id*="cookie"]');
	leftovers.forEach(el => {
		const style = window.getComputedStyle(el);
		if (style.position === 'fixed' || style.position === 'absolute') {
			el.style.display = 'none';
		}
	});
}`

// DismissOverlays clears cookie/consent banners before detection starts.
// Banners are found by overlay behavior (fixed position, high z-order,
// consent-like text), not by site-specific selectors. Dismissal is retried a
// few times because some sites stack banners.
func DismissOverlays(ctx context.Context, d Driver) bool {
	dismissed := false
	for i := 0; i < 3; i++ {
		v, err := d.Eval(ctx, dismissScript)
		if err != nil || !v.Bool() {
			break
		}
		dismissed = true
		// wait out the banner's exit animation
		select {
		case <-ctx.Done():
			return dismissed
		case <-time.After(500 * time.Millisecond):
		}
	}

	d.Eval(ctx, hideLeftoverScript)
	return dismissed
}
