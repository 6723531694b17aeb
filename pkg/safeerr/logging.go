package safeerr

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// sensitiveKeys are context field names whose values are redacted before any
// log line is written, regardless of environment.
var sensitiveKeys = []string{"apikey", "api_key", "token", "password", "authorization", "cookie", "secret"}

const redactedValue = "[REDACTED]"

// LogSecurely writes the full error detail to the log with known-sensitive
// context values redacted. Surfacing to the caller is a separate concern;
// logging always keeps full fidelity of the error itself.
func (t *Translator) LogSecurely(err error, fields logrus.Fields) {
	entry := t.logger.WithField("production", t.production)
	if fields != nil {
		entry = entry.WithFields(redactFields(fields))
	}
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error("operation failed")
}

func redactFields(fields logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for key, value := range fields {
		if isSensitiveKey(key) {
			out[key] = redactedValue
			continue
		}
		out[key] = value
	}
	return out
}

func isSensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowered, sensitive) {
			return true
		}
	}
	return false
}
