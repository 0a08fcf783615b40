package webhook

import (
	"regexp"
	"strings"
)

var noteKVRe = regexp.MustCompile(`(?i)(?:^|[\s,;:])([a-zA-Z0-9_]+)=([a-zA-Z0-9-]+)`)

// ParseKeyFromNote extracts a key=value token from free text such as a payment
// description. Matching on the key is case-insensitive.
//
// Example:
//
//	"decor_booking: booking_id=0b7c6f2e-3c1d-4a53-9a43-7e1c4d2f9a10"
func ParseKeyFromNote(note string, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	for _, m := range noteKVRe.FindAllStringSubmatch(note, -1) {
		if len(m) != 3 {
			continue
		}
		if strings.EqualFold(m[1], key) {
			return m[2]
		}
	}
	return ""
}
