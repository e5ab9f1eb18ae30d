package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/micumarket/composer/shared/domain"
)

// newPolicy builds the sanitizer for rendered message bodies: only the
// markup the message template itself produces survives.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("br", "div", "p")
	p.AllowAttrs("class").OnElements("div", "p", "a", "img")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("href", "target").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	return p
}

// renderBody escapes user content and converts line breaks to visual breaks.
func (l *List) renderBody(content string) string {
	escaped := html.EscapeString(content)
	withBreaks := strings.ReplaceAll(escaped, "\n", "<br>")
	return l.policy.Sanitize("<p>" + withBreaks + "</p>")
}

// renderAttachment produces the attachments area for one attachment: an
// image tag for images, a download link for everything else.
func (l *List) renderAttachment(att domain.ConfirmedAttachment) string {
	var markup string
	if att.Kind == domain.KindImage {
		markup = fmt.Sprintf(
			`<div class="message-attachments"><img src="%s" alt="%s" class="attachment-image"></div>`,
			html.EscapeString(att.URL), html.EscapeString(att.Filename),
		)
	} else {
		markup = fmt.Sprintf(
			`<div class="message-attachments"><a href="%s" target="_blank" class="attachment-file">%s</a></div>`,
			html.EscapeString(att.URL), html.EscapeString(att.Filename),
		)
	}
	return l.policy.Sanitize(markup)
}
