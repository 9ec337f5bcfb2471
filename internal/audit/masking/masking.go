// Package masking redacts user identifiers and credentials before they are
// written to audit metadata.
package masking

import "strings"

const maskToken = "****"

// MaskFields returns a copy of payload with known sensitive keys masked.
// Nested maps are walked; other keys are copied as is.
func MaskFields(payload map[string]any) map[string]any {
	if len(payload) == 0 {
		return payload
	}

	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch nested := value.(type) {
		case map[string]any:
			out[key] = MaskFields(nested)
			continue
		}

		str, ok := value.(string)
		if !ok {
			out[key] = value
			continue
		}

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "email":
			out[key] = MaskEmail(str)
		case "login", "username":
			out[key] = MaskLogin(str)
		case "session_token":
			out[key] = MaskToken(str)
		case "password", "password_confirmation":
			out[key] = maskToken
		default:
			out[key] = str
		}
	}
	return out
}

// MaskEmail keeps only the domain: john_doe@example.com becomes
// ****@example.com. Anything that is not an address is fully masked.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return maskToken
	}
	return maskToken + trimmed[at:]
}

// MaskLogin masks a username-or-email login. Usernames keep their first
// character so failed attempts against one account can be grouped.
func MaskLogin(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, "@") {
		return MaskEmail(trimmed)
	}
	runes := []rune(trimmed)
	if len(runes) <= 2 {
		return maskToken
	}
	return string(runes[0]) + maskToken
}

// MaskToken keeps the last four characters of long tokens.
func MaskToken(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 12 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}
