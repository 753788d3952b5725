package logger

import (
	"net/url"
	"strings"
)

// SanitizedEmail keeps the first letter of the local part and the top-level
// domain: "admin@bank.test" logs as "a****@****.test".
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	masked := local[:1] + strings.Repeat("*", len(local)-1)
	if dot := strings.LastIndexByte(domain, '.'); dot > 0 {
		domain = maskLabels(domain[:dot]) + domain[dot:]
	}
	return masked + "@" + domain
}

func maskLabels(host string) string {
	labels := strings.Split(host, ".")
	for i, label := range labels {
		labels[i] = strings.Repeat("*", len(label))
	}
	return strings.Join(labels, ".")
}

var sensitiveParams = []string{"password", "token", "secret", "email", "session", "tab", "auth", "key"}

// SanitizeQueryString reports whether a query string names a sensitive
// parameter and must be dropped from logs. Unparseable queries count as
// sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for name := range values {
		name = strings.ToLower(name)
		for _, sensitive := range sensitiveParams {
			if strings.Contains(name, sensitive) {
				return true
			}
		}
	}
	return false
}
