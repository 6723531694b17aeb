package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Context selects how aggressively untrusted text is cleaned. The call site
// picks the context based on where the value will end up.
type Context string

const (
	PlainText Context = "plain_text"
	RichText  Context = "rich_text"
	Sensitive Context = "sensitive"
	FormInput Context = "form_input"
)

// Policy is the immutable rule bundle behind a Context.
type Policy struct {
	AllowMarkup        bool
	AllowLinks         bool
	MaxLength          int
	StripScripts       bool
	PreserveWhitespace bool
}

// policies is the closed context table. Lookup only, never mutated at runtime.
var policies = map[Context]Policy{
	PlainText: {AllowMarkup: false, AllowLinks: false, MaxLength: 1000, StripScripts: true, PreserveWhitespace: false},
	RichText:  {AllowMarkup: true, AllowLinks: true, MaxLength: 50000, StripScripts: true, PreserveWhitespace: true},
	Sensitive: {AllowMarkup: false, AllowLinks: false, MaxLength: 500, StripScripts: true, PreserveWhitespace: false},
	FormInput: {AllowMarkup: false, AllowLinks: false, MaxLength: 2000, StripScripts: true, PreserveWhitespace: false},
}

// PolicyFor returns the policy bound to ctx, falling back to PlainText for
// unknown contexts so a bad caller never bypasses cleaning.
func PolicyFor(ctx Context) Policy {
	if p, ok := policies[ctx]; ok {
		return p
	}
	return policies[PlainText]
}

var (
	// strictMarkup strips every element and attribute, keeping text content.
	strictMarkup = bluemonday.StrictPolicy()

	// inlineMarkup is the allow-list used by markup-preserving contexts.
	// Active content (script/object/embed/iframe) is outside the allow-list
	// and therefore always removed.
	inlineMarkup = newInlinePolicy(false)

	// inlineMarkupWithLinks additionally permits anchors with href/target/rel.
	inlineMarkupWithLinks = newInlinePolicy(true)
)

func newInlinePolicy(allowLinks bool) *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"b", "i", "u", "s", "em", "strong", "code", "pre",
		"p", "br", "ul", "ol", "li", "blockquote", "span",
	)
	if allowLinks {
		p.AllowAttrs("href", "target", "rel").OnElements("a")
		p.AllowElements("a")
		p.AllowStandardURLs()
		p.RequireNoFollowOnLinks(true)
	}
	return p
}

// Sanitize cleans input according to the named context. It never fails and
// always returns a string; non-policy callers get the PlainText fallback.
func Sanitize(input string, ctx Context) string {
	policy := PolicyFor(ctx)

	out := input
	if !policy.PreserveWhitespace {
		out = strings.TrimSpace(out)
	}
	out = truncate(out, policy.MaxLength)

	if policy.AllowMarkup {
		if policy.AllowLinks {
			out = inlineMarkupWithLinks.Sanitize(out)
		} else {
			out = inlineMarkup.Sanitize(out)
		}
	} else {
		out = strictMarkup.Sanitize(out)
	}

	// Defense-in-depth pass after markup filtering: dangerous URI schemes and
	// inline event handlers must not survive even if the markup filter is
	// bypassed by malformed input.
	out = stripDangerousSchemes(out)
	out = stripEventHandlers(out)

	// Entity escaping can grow the string past the budget, so the length cap
	// is enforced again at the end.
	return truncate(out, policy.MaxLength)
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
