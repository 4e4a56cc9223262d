package detect

import (
	"context"

	"go.uber.org/zap"

	"github.com/v0xg/bddprobe/internal/driver"
)

// classifyScript walks every element in document order and records behavioral
// signals: a hover-rule style delta, evidence of a click handler, and popup
// trigger markers. It never matches against hard-coded site selectors. Each
// signal probe is wrapped so one throwing element (cross-origin stylesheet,
// detached node) loses that signal, not the walk.
const classifyScript = `(minHoverDelta, minSize, maxText) => {
	const out = [];
	const seen = new Set();

	function isValidCSSName(name) {
		return /^[a-zA-Z_][a-zA-Z0-9_-]*$/.test(name);
	}

	// Helper to generate a unique selector
	function getSelector(el) {
		if (el.id && isValidCSSName(el.id)) return '#' + el.id;
		if (el.name && typeof el.name === 'string') return '[name="' + el.name + '"]';

		if (el.className && typeof el.className === 'string') {
			const validClasses = el.className.trim().split(/\s+/).filter(isValidCSSName).slice(0, 2);
			if (validClasses.length > 0) {
				const selector = el.tagName.toLowerCase() + '.' + validClasses.join('.');
				try {
					if (document.querySelectorAll(selector).length === 1) {
						return selector;
					}
				} catch (e) {
					// Invalid selector, fall through
				}
			}
		}

		const parent = el.parentElement;
		if (parent && parent !== document.documentElement) {
			const index = Array.from(parent.children).indexOf(el) + 1;
			const parentSelector = getSelector(parent);
			if (parentSelector) {
				return parentSelector + ' > ' + el.tagName.toLowerCase() + ':nth-child(' + index + ')';
			}
		}
		return el.tagName.toLowerCase();
	}

	// Collect :hover rules once; per-sheet access can throw on cross-origin
	// stylesheets.
	const hoverRules = [];
	for (const sheet of document.styleSheets) {
		let rules;
		try { rules = sheet.cssRules; } catch (e) { continue; }
		if (!rules) continue;
		for (const rule of rules) {
			if (rule.selectorText && rule.selectorText.includes(':hover')) {
				hoverRules.push(rule);
			}
		}
	}

	// hoverDelta measures how far the element's style moves when a :hover
	// rule applies: opacity distance, or 1.0 for visibility/display/transform
	// flips. 0 means no hover rule touches this element.
	function hoverDelta(el) {
		let delta = 0;
		const style = getComputedStyle(el);
		for (const rule of hoverRules) {
			const base = rule.selectorText.split(',')
				.map(s => s.trim())
				.filter(s => s.includes(':hover'))
				.map(s => s.replace(/:hover/g, ''))
				.filter(s => s.length > 0);
			for (const sel of base) {
				let matches;
				try { matches = el.matches(sel); } catch (e) { continue; }
				if (!matches) continue;
				const hs = rule.style;
				if (hs.visibility || hs.display || hs.transform || hs.maxHeight) {
					return 1;
				}
				if (hs.opacity !== '') {
					const target = parseFloat(hs.opacity);
					const current = parseFloat(style.opacity) || 1;
					if (!isNaN(target)) {
						delta = Math.max(delta, Math.abs(target - current));
					}
				}
				if (hs.backgroundColor || hs.color || hs.borderColor || hs.boxShadow) {
					delta = Math.max(delta, minHoverDelta);
				}
			}
		}
		return delta;
	}

	// Structural hover hint: element owns a hidden descendant list or panel
	// that a dropdown menu would reveal.
	function hasHiddenPanel(el) {
		for (const child of el.children) {
			const tag = child.tagName.toLowerCase();
			if (tag !== 'ul' && tag !== 'div' && tag !== 'nav') continue;
			const cs = getComputedStyle(child);
			if (cs.display === 'none' || cs.visibility === 'hidden' || parseFloat(cs.opacity) === 0) {
				return true;
			}
		}
		return false;
	}

	function clickSignal(el, style) {
		const tag = el.tagName.toLowerCase();
		if (tag === 'a' || tag === 'button' || tag === 'select' || tag === 'summary') return true;
		if (tag === 'input') {
			const t = (el.getAttribute('type') || 'text').toLowerCase();
			return t === 'submit' || t === 'button' || t === 'checkbox' || t === 'radio';
		}
		const role = el.getAttribute('role');
		if (role === 'button' || role === 'link' || role === 'tab' || role === 'menuitem') return true;
		if (el.onclick || el.hasAttribute('onclick')) return true;
		if (el.hasAttribute('tabindex') && style.cursor === 'pointer') return true;
		return false;
	}

	function popupSignal(el) {
		if (el.hasAttribute('aria-haspopup') && el.getAttribute('aria-haspopup') !== 'false') return true;
		if (el.hasAttribute('aria-expanded')) return true;
		if (el.hasAttribute('data-modal') || el.hasAttribute('data-popup')) return true;
		const toggle = el.getAttribute('data-toggle') || el.getAttribute('data-bs-toggle');
		if (toggle === 'modal' || toggle === 'dropdown' || toggle === 'popover') return true;
		const href = el.getAttribute('href');
		if (href && href.startsWith('#') && href.length > 1) return true;
		return false;
	}

	document.querySelectorAll('*').forEach(el => {
		if (out.length >= 200) return;
		if (!el.offsetParent && getComputedStyle(el).position !== 'fixed') return;

		const rect = el.getBoundingClientRect();
		if (rect.width < 1 || rect.height < 1) return;

		const style = getComputedStyle(el);
		const roles = [];
		let hd = 0;
		try { hd = hoverDelta(el); } catch (e) {}
		let hidden = false;
		try { hidden = hasHiddenPanel(el); } catch (e) {}
		if (hd >= minHoverDelta || hidden) roles.push('hoverable');

		let clickable = false;
		try { clickable = clickSignal(el, style); } catch (e) {}
		if (clickable && rect.width >= minSize && rect.height >= minSize) {
			roles.push('clickable');
			let popup = false;
			try { popup = popupSignal(el); } catch (e) {}
			if (popup) roles.push('popup_trigger');
		}

		if (roles.length === 0) return;

		const selector = getSelector(el);
		if (seen.has(selector)) return;
		seen.add(selector);

		const attrs = {};
		for (const name of ['href', 'role', 'type', 'aria-label', 'aria-haspopup', 'target']) {
			const v = el.getAttribute(name);
			if (v !== null) attrs[name] = v;
		}

		out.push({
			selector: selector,
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.value || el.getAttribute('aria-label') || '').trim().substring(0, maxText),
			attrs: attrs,
			box: {x: rect.x, y: rect.y, width: rect.width, height: rect.height},
			roles: roles,
		});
	});

	return out;
}`

// Classify probes the live page and returns every element that earned at
// least one role, in document order. Elements with no signal are dropped,
// never reported as errors.
func Classify(ctx context.Context, d driver.Driver, th Thresholds, log *zap.Logger) ([]Candidate, error) {
	result, err := d.Eval(ctx, classifyScript, th.MinHoverDelta, th.MinClickableSize, th.MaxTextLen)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, v := range result.Arr() {
		attrs := make(map[string]string)
		for k, av := range v.Get("attrs").Map() {
			attrs[k] = av.String()
		}
		if len(attrs) == 0 {
			attrs = nil
		}
		var roles []Role
		for _, r := range v.Get("roles").Arr() {
			roles = append(roles, Role(r.String()))
		}
		box := v.Get("box")
		candidates = append(candidates, Candidate{
			Descriptor: ElementDescriptor{
				Selector:   v.Get("selector").String(),
				Tag:        v.Get("tag").String(),
				Text:       NormalizeText(v.Get("text").String()),
				Attributes: attrs,
				Box: BoundingBox{
					X:      box.Get("x").Num(),
					Y:      box.Get("y").Num(),
					Width:  box.Get("width").Num(),
					Height: box.Get("height").Num(),
				},
			},
			Roles: roles,
		})
	}

	log.Debug("classified page elements", zap.Int("candidates", len(candidates)))
	return candidates, nil
}
