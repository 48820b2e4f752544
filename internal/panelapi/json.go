package panelapi

import (
	"net/url"
	"strings"
)

// parseBoolish mirrors the panel's loose truthiness rules for a decoded
// JSON "status" field: booleans and non-zero numbers are true, and a
// handful of string spellings are accepted (spec §4.9 "If status is
// truthy").
func parseBoolish(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "yes", "y", "ok":
			return true
		}
		return false
	default:
		return false
	}
}

// isDateOnlyYYYYMMDD reports whether s is exactly a "YYYY-MM-DD" string,
// used to normalize a date-only exp_date to midnight before parsing.
func isDateOnlyYYYYMMDD(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 10 {
		return false
	}
	b := []byte(s)
	if b[4] != '-' || b[7] != '-' {
		return false
	}
	isDigits := func(bs []byte) bool {
		for _, c := range bs {
			if c < '0' || c > '9' {
				return false
			}
		}
		return true
	}
	return isDigits(b[0:4]) && isDigits(b[5:7]) && isDigits(b[8:10])
}

// firstJSONObject returns the first JSON object in v, looking through a
// leading array wrapper if present (panels commonly answer with either a
// bare object or a one-element array of one).
func firstJSONObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case []any:
		if len(x) == 0 {
			return nil, false
		}
		return firstJSONObject(x[0])
	default:
		return nil, false
	}
}

func stringField(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func extractUsernamePasswordFromJSON(obj map[string]any) (username, password string, ok bool) {
	u, uok := stringField(obj, "username")
	p, pok := stringField(obj, "password")
	if uok && pok {
		return u, p, true
	}
	return "", "", false
}

func extractUsernamePasswordFromURL(rawURL string) (username, password string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return "", "", false
	}
	user := u.User.Username()
	pass, _ := u.User.Password()
	if strings.TrimSpace(user) == "" || strings.TrimSpace(pass) == "" {
		return "", "", false
	}
	return user, pass, true
}

// extractBaseURL returns scheme://host[:port] for rawURL, dropping
// path/query/credentials (spec §4.9 "extract the base url").
func extractBaseURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

func trimLastSlash(s string) string {
	return strings.TrimSuffix(s, "/")
}
