package core

import "strings"

// BroadcastChannel is the channel key shared by every active identity.
const BroadcastChannel = ""

// directSeparator joins the two identity keys of a direct channel.
const directSeparator = "|"

// reservedChars may not appear in display names or group names, which keeps
// identity keys, group names and direct channel keys from colliding.
const reservedChars = identitySeparator + directSeparator

// DirectChannelKey returns the order-independent channel key for two identities.
func DirectChannelKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + directSeparator + b
}

// IsDirectChannel reports whether key names a direct-message channel.
func IsDirectChannel(key string) bool {
	return strings.Contains(key, directSeparator)
}

func validGroupName(name string) bool {
	return name != "" && len(name) <= 64 && strings.TrimSpace(name) == name &&
		!strings.ContainsAny(name, reservedChars)
}

// validMemberRef accepts blanks, which are skipped, and name#TAG keys.
func validMemberRef(ref string) bool {
	if ref == "" {
		return true
	}
	name, tag, ok := strings.Cut(ref, identitySeparator)
	return ok && name != "" && tag != "" && !strings.ContainsAny(tag, reservedChars) &&
		!strings.Contains(name, directSeparator)
}
