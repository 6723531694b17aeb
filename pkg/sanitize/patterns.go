package sanitize

import "regexp"

// Compiled once at package init, mirroring the closed pattern tables used by
// the gateway's injection filters.
var (
	dangerousSchemePattern = regexp.MustCompile(`(?i)\b(?:javascript|vbscript|data)\s*:`)

	eventHandlerPattern = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
)

// xssPatterns is the fixed detector set behind ContainsPotentialXSS. It is an
// auditing aid, not a sanitizer; Sanitize remains the enforcement path.
var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*/?\s*script`),
	regexp.MustCompile(`(?i)\bjavascript\s*:`),
	regexp.MustCompile(`(?i)\bvbscript\s*:`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?i)<\s*/?\s*(?:iframe|object|embed)`),
	regexp.MustCompile(`(?i)\bdata\s*:\s*text/html`),
}

func stripDangerousSchemes(s string) string {
	return dangerousSchemePattern.ReplaceAllString(s, "")
}

func stripEventHandlers(s string) string {
	return eventHandlerPattern.ReplaceAllString(s, "")
}

// ContainsPotentialXSS reports whether input matches any known XSS pattern.
func ContainsPotentialXSS(input string) bool {
	for _, pattern := range xssPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
