package detect

import (
	"context"

	"github.com/v0xg/bddprobe/internal/driver"
)

const navigationScript = `() => {
	const items = [];
	const seen = new Set();

	document.querySelectorAll('nav a, header a, [role="navigation"] a').forEach(el => {
		if (!el.offsetParent) return;
		const href = el.getAttribute('href');
		if (!href || href === '#' || href.startsWith('javascript:')) return;
		if (seen.has(href)) return;
		seen.add(href);

		const text = (el.innerText || el.getAttribute('aria-label') || '').trim();
		if (!text) return;

		// Parent owning a hidden list implies a dropdown behind this entry.
		let hasDropdown = false;
		const parent = el.parentElement;
		if (parent) {
			for (const child of parent.children) {
				const tag = child.tagName.toLowerCase();
				if (tag !== 'ul' && tag !== 'div') continue;
				const cs = getComputedStyle(child);
				if (cs.display === 'none' || cs.visibility === 'hidden') {
					hasDropdown = true;
					break;
				}
			}
		}

		items.push({text: text.substring(0, 80), href: href, hasDropdown: hasDropdown});
	});

	return items;
}`

// ExtractNavigation pulls the page's navigation links in document order.
// Failures degrade to an empty list; navigation is supporting context, not a
// required analysis product.
func ExtractNavigation(ctx context.Context, d driver.Driver) []NavLink {
	result, err := d.Eval(ctx, navigationScript)
	if err != nil {
		return nil
	}
	var items []NavLink
	for _, v := range result.Arr() {
		items = append(items, NavLink{
			Text:        NormalizeText(v.Get("text").String()),
			Href:        v.Get("href").String(),
			HasDropdown: v.Get("hasDropdown").Bool(),
		})
	}
	return items
}
