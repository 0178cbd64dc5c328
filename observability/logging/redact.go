package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces free-form values that must not reach the logs.
const RedactedValue = "[REDACTED]"

// plainKeys are emitted as-is. Everything else passed through MaskField, such
// as transaction memos and file contents, is replaced.
var plainKeys = map[string]bool{
	"component": true,
	"error":     true,
	"reason":    true,
	"round":     true,
	"txid":      true,
	"status":    true,
	"node":      true,
	"payer":     true,
}

// MaskField returns the attribute for key, redacting value unless the key is
// known to carry only identifiers. Empty values are kept.
func MaskField(key, value string) slog.Attr {
	if value == "" || plainKeys[strings.ToLower(strings.TrimSpace(key))] {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
