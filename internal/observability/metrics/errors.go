package metrics

import (
	"strings"

	"github.com/tphakala/go-porcupine/internal/errors"
)

// categorizeError returns a label value for err.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	return strings.ReplaceAll(string(errors.CategoryOf(err)), "-", "_")
}
