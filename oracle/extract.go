package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	extractRe = regexp.MustCompile(`(?s)<data_extract>(.*?)</data_extract>`)
	endCallRe = regexp.MustCompile(`<end_call\s*/?>`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// parseReply splits a raw model response into spoken text, extracted fields,
// and the end-of-call signal. Malformed extract blocks are dropped without
// failing the reply; the spoken text matters more than the metadata.
func parseReply(raw string) Reply {
	reply := Reply{}

	if m := extractRe.FindStringSubmatch(raw); m != nil {
		var fields map[string]any
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fields) == nil {
			reply.Data = cleanFields(fields)
		}
	}
	raw = extractRe.ReplaceAllString(raw, "")

	if endCallRe.MatchString(raw) {
		reply.EndCall = true
		raw = endCallRe.ReplaceAllString(raw, "")
	}

	reply.Text = strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
	return reply
}

// cleanFields normalizes extracted values into storable form. Values arrive
// as the model heard them spoken ("john at gmail dot com", "555-123-4567",
// separate first and last names) and leave in canonical form.
func cleanFields(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		s, ok := stringValue(v)
		if !ok || s == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		switch key {
		case "email":
			out["email"] = cleanEmail(s)
		case "phone", "phone_number":
			out["phone"] = cleanPhone(s)
		case "name", "full_name":
			out["name"] = cleanName(s)
		case "first_name", "last_name":
			out[key] = cleanName(s)
		default:
			out[key] = strings.TrimSpace(s)
		}
	}

	// Separate first/last names collapse into one field.
	first, last := out["first_name"], out["last_name"]
	if first != "" || last != "" {
		if out["name"] == "" {
			out["name"] = strings.TrimSpace(first + " " + last)
		}
		delete(out, "first_name")
		delete(out, "last_name")
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", val), ".0"), true
	case bool:
		return fmt.Sprintf("%v", val), true
	default:
		return "", false
	}
}

// cleanEmail turns a spoken address into a real one: "john at gmail dot com"
// becomes "john@gmail.com".
func cleanEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " at ", "@")
	s = strings.ReplaceAll(s, " dot ", ".")
	s = strings.ReplaceAll(s, " underscore ", "_")
	s = strings.ReplaceAll(s, " dash ", "-")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// cleanPhone keeps digits and a leading plus only.
func cleanPhone(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cleanName trims and collapses whitespace, preserving the speaker's casing.
func cleanName(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
