package sanitize

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const maxAPIKeyLength = 256

// htmlSignificant are characters that must never appear in a credential.
const htmlSignificant = `<>"'&;`

// APIKey is the one sanitizer allowed to fail: a credential that cleans down
// to nothing must never silently proceed as valid input elsewhere.
func APIKey(key string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(htmlSignificant, r) {
			return -1
		}
		return r
	}, key)

	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > maxAPIKeyLength {
		cleaned = cleaned[:maxAPIKeyLength]
	}
	if cleaned == "" {
		return "", fmt.Errorf("invalid api key: empty after sanitization")
	}
	return cleaned, nil
}

// URL accepts only http/https URLs, sanitizes every query parameter under the
// FormInput context and rebuilds the query string. Anything malformed yields
// an empty string rather than an error.
func URL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	if parsed.Host == "" {
		return ""
	}

	query := parsed.Query()
	rebuilt := make(url.Values, len(query))
	for key, values := range query {
		cleanKey := Sanitize(key, FormInput)
		for _, value := range values {
			rebuilt.Add(cleanKey, Sanitize(value, FormInput))
		}
	}
	parsed.RawQuery = rebuilt.Encode()

	return parsed.String()
}
