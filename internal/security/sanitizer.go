// Package security holds the allow-list policy applied to run previews
// before they are shown outside the sandbox.
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// PreviewSanitizer strips executable content from a rendered document.
type PreviewSanitizer interface {
	Sanitize(markup string) string
}

type previewSanitizer struct {
	policy *bluemonday.Policy
}

// NewPreviewSanitizer keeps structural and text markup plus id/class
// attributes. Scripts, styles, frames, forms and on* handlers are removed;
// links and images must use https.
func NewPreviewSanitizer() PreviewSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"div", "span", "section", "article", "header", "footer", "main", "nav",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "ul", "ol", "li",
		"blockquote", "pre", "code", "strong", "em", "b", "i", "small",
		"table", "thead", "tbody", "tr", "th", "td",
		"button", "label",
	)
	p.AllowAttrs("id", "class").Globally()

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool { return true })

	return &previewSanitizer{policy: p}
}

func (s *previewSanitizer) Sanitize(markup string) string {
	return s.policy.Sanitize(markup)
}
