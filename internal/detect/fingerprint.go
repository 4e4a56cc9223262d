package detect

import (
	"context"

	"github.com/v0xg/bddprobe/internal/driver"
)

// fingerprintScript records every overlay-eligible node currently rendered:
// fixed or absolute positioning, stacked at or above the z-index floor, and
// at least the minimum size, plus dialog-role containers regardless of
// stacking. For each container it also records the visible links inside it,
// so a diff can name what a dropdown or popup actually exposed.
const fingerprintScript = `(minW, minH, minZ, maxText) => {
	const nodes = [];
	const links = [];

	function keyFor(el, text) {
		const id = el.id || (el.className && typeof el.className === 'string'
			? el.className.trim().split(/\s+/)[0] : '');
		return el.tagName.toLowerCase() + '|' + id + '|' + text.substring(0, 40);
	}

	document.querySelectorAll('*').forEach(el => {
		if (nodes.length >= 300) return;
		const style = getComputedStyle(el);
		const positioned = style.position === 'fixed' || style.position === 'absolute';
		const stacked = parseInt(style.zIndex) >= minZ;
		const dialog = el.getAttribute('role') === 'dialog' || el.hasAttribute('aria-modal');
		if (!dialog && !(positioned && stacked)) return;
		if (style.display === 'none' || style.visibility === 'hidden') return;

		const rect = el.getBoundingClientRect();
		if (!dialog && (rect.width < minW || rect.height < minH)) return;

		const text = (el.innerText || '').trim().substring(0, maxText);
		nodes.push({
			key: keyFor(el, text),
			tag: el.tagName.toLowerCase(),
			text: text,
		});

		el.querySelectorAll('a[href]').forEach(a => {
			const rect = a.getBoundingClientRect();
			if (rect.width === 0 || rect.height === 0) return;
			const linkText = (a.innerText || a.getAttribute('aria-label') || '').trim();
			links.push({
				key: keyFor(a, linkText) + '|' + a.getAttribute('href'),
				tag: 'a',
				text: linkText.substring(0, maxText),
				href: a.getAttribute('href'),
			});
		});
	});

	return {nodes: nodes, links: links};
}`

// fpNode is one fingerprinted node. Key is structural (tag, id or first
// class, leading text), deliberately ignoring position and size so layout
// shifts do not register as appearances.
type fpNode struct {
	Key  string
	Tag  string
	Text string
	Href string
}

// Fingerprint is a presence snapshot of the page's overlay-eligible DOM.
// Diffing two fingerprints reports appearances only; removals and attribute
// churn on persistent nodes are ignored.
type Fingerprint struct {
	nodes []fpNode
}

// CaptureFingerprint snapshots the page's overlay-eligible nodes.
func CaptureFingerprint(ctx context.Context, d driver.Driver, th Thresholds) (Fingerprint, error) {
	result, err := d.Eval(ctx, fingerprintScript, th.OverlayMinWidth, th.OverlayMinHeight, th.OverlayMinZ, th.MaxTextLen)
	if err != nil {
		return Fingerprint{}, err
	}

	var fp Fingerprint
	for _, v := range result.Get("nodes").Arr() {
		fp.nodes = append(fp.nodes, fpNode{
			Key:  v.Get("key").String(),
			Tag:  v.Get("tag").String(),
			Text: NormalizeText(v.Get("text").String()),
		})
	}
	for _, v := range result.Get("links").Arr() {
		fp.nodes = append(fp.nodes, fpNode{
			Key:  v.Get("key").String(),
			Tag:  v.Get("tag").String(),
			Text: NormalizeText(v.Get("text").String()),
			Href: v.Get("href").String(),
		})
	}
	return fp, nil
}

// Diff returns the elements present in after but not in f, in after's
// capture order.
func (f Fingerprint) Diff(after Fingerprint) []ElementDescriptor {
	known := make(map[string]struct{}, len(f.nodes))
	for _, n := range f.nodes {
		known[n.Key] = struct{}{}
	}

	var appeared []ElementDescriptor
	seen := make(map[string]struct{})
	for _, n := range after.nodes {
		if _, ok := known[n.Key]; ok {
			continue
		}
		if _, dup := seen[n.Key]; dup {
			continue
		}
		seen[n.Key] = struct{}{}
		desc := ElementDescriptor{Tag: n.Tag, Text: n.Text}
		if n.Href != "" {
			desc.Attributes = map[string]string{"href": n.Href}
		}
		appeared = append(appeared, desc)
	}
	return appeared
}

// Len reports the number of fingerprinted nodes.
func (f Fingerprint) Len() int { return len(f.nodes) }
