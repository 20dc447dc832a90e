package credit

import (
	"strconv"
	"strings"
	"time"
)

const referenceSuffixLen = 8

// NewReference mints a human-traceable transaction reference: a millisecond
// timestamp followed by the tail of the checkout session id, so support can
// find the session in the processor dashboard from the reference alone.
// Session ids are case-sensitive, so the tail is kept as is.
func NewReference(now time.Time, sessionID string) string {
	suffix := strings.TrimSpace(sessionID)
	if len(suffix) > referenceSuffixLen {
		suffix = suffix[len(suffix)-referenceSuffixLen:]
	}
	if suffix == "" {
		suffix = "NOSESSION"
	}
	return "CR-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix
}
