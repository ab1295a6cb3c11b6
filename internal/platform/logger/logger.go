package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Mode picks the encoder preset: "production", "test" or development.
	Mode string
	// Level overrides the preset's default level when set.
	Level string
	// KeepSecrets disables redaction of credential-like fields.
	KeepSecrets bool
	// HashSalt is mixed into hashed member identifiers.
	HashSalt string
}

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	scrub         *scrubber
}

func New(opts Options) (*Logger, error) {
	var (
		cfg zap.Config
		def zapcore.Level
	)
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "prod", "production":
		cfg, def = zap.NewProductionConfig(), zapcore.InfoLevel
	case "test":
		cfg, def = zap.NewDevelopmentConfig(), zapcore.WarnLevel
	default:
		cfg, def = zap.NewDevelopmentConfig(), zapcore.DebugLevel
	}
	lvl := def
	if raw := strings.TrimSpace(opts.Level); raw != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", raw, err)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	var s *scrubber
	if !opts.KeepSecrets {
		s = &scrubber{salt: opts.HashSalt}
	}
	return &Logger{SugaredLogger: z.Sugar(), scrub: s}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.SugaredLogger.Debugw(msg, l.scrub.kvs(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.SugaredLogger.Infow(msg, l.scrub.kvs(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.SugaredLogger.Warnw(msg, l.scrub.kvs(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.SugaredLogger.Errorw(msg, l.scrub.kvs(keysAndValues)...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...any) {
	l.SugaredLogger.Fatalw(msg, l.scrub.kvs(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.scrub.kvs(keysAndValues)...), scrub: l.scrub}
}

// scrubber hides credentials and pseudonymizes member ids in log fields.
// A nil scrubber passes fields through.
type scrubber struct {
	salt string
}

var (
	secretFragments = []string{"token", "authorization", "password", "secret", "cookie"}
	memberIDKeys    = []string{"user_id", "userid", "actor_id", "actorid", "owner_id"}
)

func (s *scrubber) kvs(kv []any) []any {
	if s == nil || len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key := toString(kv[i])
		out = append(out, key, s.value(strings.ToLower(key), kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, kv[len(kv)-1])
	}
	return out
}

func (s *scrubber) value(key string, val any) any {
	for _, frag := range secretFragments {
		if strings.Contains(key, frag) {
			return "[REDACTED]"
		}
	}
	for _, k := range memberIDKeys {
		if key == k {
			return s.hash(val)
		}
	}
	if str, ok := val.(string); ok && looksLikeJWT(str) {
		return "[REDACTED]"
	}
	return val
}

func (s *scrubber) hash(val any) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
