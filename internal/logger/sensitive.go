package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// sensitiveDataPatterns match credentials embedded in free-form text
var sensitiveDataPatterns = []redaction{
	{regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`), "${1}" + redactedValue},
	{regexp.MustCompile(`(?i)((access[_-]?key|api[_-]?key|token|secret|passw(or)?d)[\s:=]+)([^;,\s]{5,})`), "${1}" + redactedValue},
	{regexp.MustCompile(`(?i)\b(tcp|ssl|tls|mqtts?|https?)://[^/\s@]+@`), "${1}://" + redactedValue + "@"},
}

// sensitiveKeys are field keys whose values are never written out
var sensitiveKeys = []string{
	"access_key", "accesskey", "api_key", "apikey", "password", "passwd",
	"secret", "token", "authorization",
}

// RedactSensitiveData replaces credentials in s with [REDACTED]
func RedactSensitiveData(s string) string {
	if s == "" {
		return s
	}
	for _, r := range sensitiveDataPatterns {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
