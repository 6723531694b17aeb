package client

import (
	"fmt"
	"strings"

	"github.com/altura-labs/secgate/pkg/common"
	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

// validateResponse inspects successful responses before they reach the
// caller. JSON bodies are walked and every string value screened for active
// content. A non-JSON content type on a JSON-looking body is logged but not
// rejected, since upstreams routinely mislabel.
func (c *Client) validateResponse(resp *Response) error {
	contentType := resp.Headers.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "json") {
		c.logger.WithField("content_type", contentType).
			Warn("unexpected response content type")
	}
	if len(resp.Body) == 0 {
		return nil
	}

	parser := parserPool.Get()
	defer parserPool.Put(parser)

	value, err := parser.ParseBytes(resp.Body)
	if err != nil {
		if strings.Contains(contentType, "json") || contentType == common.ContentTypeJSON {
			return fmt.Errorf("invalid response body: %w", err)
		}
		// Opaque non-JSON payloads are screened as a whole.
		if containsActiveContent(string(resp.Body)) {
			return fmt.Errorf("validation failed: response contains potentially malicious content")
		}
		return nil
	}

	if suspect := scanValue(value); suspect != "" {
		c.logger.WithField("fragment", truncateFragment(suspect)).
			Warn("rejected response containing active content")
		return fmt.Errorf("validation failed: response contains potentially malicious content")
	}
	return nil
}

// scanValue walks a parsed JSON tree and returns the first string holding
// active content, or "" when clean.
func scanValue(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		s := string(v.GetStringBytes())
		if containsActiveContent(s) {
			return s
		}
	case fastjson.TypeObject:
		obj := v.GetObject()
		var suspect string
		obj.Visit(func(_ []byte, child *fastjson.Value) {
			if suspect == "" {
				suspect = scanValue(child)
			}
		})
		return suspect
	case fastjson.TypeArray:
		for _, child := range v.GetArray() {
			if suspect := scanValue(child); suspect != "" {
				return suspect
			}
		}
	}
	return ""
}

func containsActiveContent(s string) bool {
	lowered := strings.ToLower(s)
	return strings.Contains(lowered, "<script") ||
		strings.Contains(lowered, "javascript:")
}

func truncateFragment(s string) string {
	if len(s) > 64 {
		return s[:64]
	}
	return s
}
