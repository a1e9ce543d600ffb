package page

import "context"

// Marker is one overlay element shown in a live page. Markers with an
// IssueKey go inside that ticket's card, the others are appended to the body.
type Marker struct {
	IssueKey string
	HTML     string
}

// LiveView is a page the user is looking at. Render replaces every owned
// element in it with markers and sets or removes bodyClass on the body.
type LiveView interface {
	Render(ctx context.Context, markers []Marker, bodyClass string, active bool) error
}

// stripScript returns the page HTML without owned elements or the mode class
const stripScript = `({owned, bodyClass}) => {
	const root = document.documentElement.cloneNode(true);
	root.querySelectorAll('[' + owned + ']').forEach(n => n.remove());
	const body = root.querySelector('body');
	if (body && bodyClass) {
		body.classList.remove(bodyClass);
		if (body.getAttribute('class') === '') body.removeAttribute('class');
	}
	return '<!DOCTYPE html>' + root.outerHTML;
}`

// renderScript swaps the owned elements of the live page for the given markers
const renderScript = `({owned, markers, bodyClass, active}) => {
	document.querySelectorAll('[' + owned + ']').forEach(n => n.remove());
	if (bodyClass) document.body.classList.toggle(bodyClass, active);
	const cardOf = key => {
		const byAttr = document.querySelector('[data-issue-key="' + key + '"]:not([' + owned + '])');
		if (byAttr) return byAttr;
		const link = document.querySelector('a[href$="/browse/' + key + '"]');
		return link ? (link.closest('[data-testid*="card"], .ghx-issue') || link.parentElement) : null;
	};
	let shown = 0;
	for (const m of markers) {
		const tpl = document.createElement('template');
		tpl.innerHTML = m.html;
		const node = tpl.content.firstElementChild;
		if (!node) continue;
		let parent = document.body;
		if (m.issueKey) {
			const card = cardOf(m.issueKey);
			if (!card) continue;
			parent = card.querySelector('.ghx-issue-content') || card;
		}
		parent.appendChild(node);
		shown++;
	}
	return shown;
}`
