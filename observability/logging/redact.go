package logging

import "strings"

// maskKeepEnds is how many leading and trailing characters survive masking.
const maskKeepEnds = 4

// MaskOwner shortens an account identifier for log output, keeping just
// enough of both ends to correlate log lines without recording the full
// identifier.
func MaskOwner(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 2*maskKeepEnds {
		return value
	}
	return value[:maskKeepEnds] + ".." + value[len(value)-maskKeepEnds:]
}
