// Package audit logs CLI command invocations: command name, resolved config
// source, and the operational environment. Secret values are recorded as
// presence/absence only, never verbatim.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditKeys is the ordered list of env vars included in every audit entry.
// secret keys are redacted to "set"/"unset".
var auditKeys = []struct {
	key    string
	secret bool
}{
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	{"OLLAMA_HOST", false},
	{"OPENAI_API_KEY", true},
	{"GOOGLE_API_KEY", true},
	{"ANSWER_PROVIDER", false},
	{"ANSWER_MODEL", false},
	{"ANSWER_API_KEY", true},
	{"QDRANT_HOST", false},
	{"QDRANT_PORT", false},
	{"QDRANT_COLLECTION", false},
	{"QDRANT_API_KEY", true},
	{"DOCQA_API_KEY", true},
	{"DOCQA_CATALOG_DB", false},
	{"DOCQA_LOG_LEVEL", false},
	{"DOCQA_LOG_FORMAT", false},
}

// LogCommandStart emits one structured entry when a CLI command begins.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range auditKeys {
		v := os.Getenv(e.key)
		if e.secret {
			v = presence(v)
		} else if v == "" {
			v = "unset"
		}
		attrs = append(attrs, slog.String(e.key, v))
	}
	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns a loggable rendering of an env value: "set"/"unset"
// for keys the audit table marks secret, the value (or "unset") otherwise.
// Keys not in the table are treated as secret.
func SanitiseKey(key, value string) string {
	for _, e := range auditKeys {
		if e.key != key {
			continue
		}
		if e.secret {
			return presence(value)
		}
		if value == "" {
			return "unset"
		}
		return value
	}
	return presence(value)
}

func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// sanitiseConfigPath replaces the home directory prefix with "~" and maps
// the empty path to "none".
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + strings.TrimPrefix(p, home)
	}
	return p
}
