package cliutil

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Paintersrp/devdock/internal/config"
)

const redactedPlaceholder = "[redacted]"

var secretKeyPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(secretKeys(), "|") + `)\b(\s*[:=]\s*)(["']?)([^"'\s]+)(["']?)`)

func secretKeys() []string {
	keys := []string{
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
		"AWS_SESSION_TOKEN",
		"DATABASE_PASSWORD",
		"DB_PASSWORD",
		"POSTGRES_PASSWORD",
		"PGPASSWORD",
		"MONGO_INITDB_ROOT_PASSWORD",
		"REDIS_PASSWORD",
		"API_KEY",
		"ACCESS_TOKEN",
		"REFRESH_TOKEN",
		"CLIENT_SECRET",
		"password",
	}
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = regexp.QuoteMeta(key)
	}
	return escaped
}

var secretEnvHints = []string{"PASSWORD", "SECRET", "TOKEN", "API_KEY", "PRIVATE_KEY"}

// Redactor masks secrets in process output before it is shown or encoded.
// Besides well known key assignments it hides the literal values of
// secret-looking environment variables configured for the processes.
type Redactor struct {
	values []string
}

// NewRedactor collects secret environment values from procs.
func NewRedactor(procs ...config.Process) *Redactor {
	seen := make(map[string]struct{})
	for _, p := range procs {
		for key, value := range p.Env {
			if len(value) < 4 || !looksSecret(key) {
				continue
			}
			seen[value] = struct{}{}
		}
	}
	r := &Redactor{values: make([]string, 0, len(seen))}
	for value := range seen {
		r.values = append(r.values, value)
	}
	// Longest first so a value containing another is masked whole.
	sort.Slice(r.values, func(i, j int) bool { return len(r.values[i]) > len(r.values[j]) })
	return r
}

func looksSecret(key string) bool {
	upper := strings.ToUpper(key)
	for _, hint := range secretEnvHints {
		if strings.Contains(upper, hint) {
			return true
		}
	}
	return false
}

// Redact masks secrets in message. A nil Redactor only masks key
// assignments.
func (r *Redactor) Redact(message string) string {
	if message == "" {
		return message
	}
	if r != nil {
		for _, value := range r.values {
			message = strings.ReplaceAll(message, value, redactedPlaceholder)
		}
	}
	return secretKeyPattern.ReplaceAllString(message, "$1$2$3"+redactedPlaceholder+"$5")
}

// RedactSecrets masks well known secret key assignments in message.
func RedactSecrets(message string) string {
	var r *Redactor
	return r.Redact(message)
}
