package logger

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	redacted    = "******"
	unavailable = "<unavailable>"
	visibleTail = 4
)

// maskers decide how a field is written to the log, keyed by the lowercased
// field name with underscores removed. Fields not listed are logged as is.
var maskers = map[string]func(any) any{
	"password":      redact,
	"oldpassword":   redact,
	"newpassword":   redact,
	"passwordhash":  redact,
	"authorization": redact,
	"cnic":          maskTail,
	"phonenumber":   maskTail,
}

// New builds the process logger. Production and staging emit JSON, anything
// else gets the development console encoder.
func New(environment, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "production", "staging":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true

	if strings.TrimSpace(level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	built, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return built, nil
}

// Payload returns a zap field holding payload with credential fields masked.
func Payload(key string, payload any) zap.Field {
	return zap.Any(key, SanitizePayload(payload))
}

func SanitizePayload(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return unavailable
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return unavailable
	}

	return sanitizeValue(data)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			if mask, ok := maskerFor(key); ok {
				out[key] = mask(inner)
				continue
			}
			out[key] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return value
	}
}

func maskerFor(key string) (func(any) any, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", ""))
	mask, ok := maskers[normalized]
	return mask, ok
}

func redact(any) any {
	return redacted
}

// maskTail keeps the last few characters of an identity number so support can
// match a log line to a customer without the full value being written.
func maskTail(value any) any {
	s, ok := value.(string)
	if !ok || len(s) <= visibleTail {
		return redacted
	}
	return strings.Repeat("*", len(s)-visibleTail) + s[len(s)-visibleTail:]
}
