package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

// defaultKeyOrder fixes the column order of well-known attributes so that
// log lines stay scannable regardless of call-site attr ordering.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"cb_key",
	"state",
	"from",
	"to",
	"app_id",
	"code",
	"channel",
	"subscribed",
	"outcome",
	"duration_ms",
	"duration",
	"messages",
	"kb",
	"count",
	"broadcast_id",
	"sent",
	"failed",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"attempts",
	"backoff_ms",
}

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "DEBUG"
	case "info", "":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	}
	return strings.ToUpper(level)
}

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

// Enabled reports whether the handler allows processing the provided level.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.cfg.level != nil {
		min = h.cfg.level.Level()
	}
	return level >= min
}

// Handle formats the slog.Record and writes it using the configured writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	fields := make(map[string]any, 16)
	isJSON := h.cfg.format == formatJSON
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if isJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		h.collectAttr(fields, h.groups, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collectAttr(fields, h.groups, a)
		return true
	})

	addContextFields(ctx, fields)

	if rid, ok := stringField(fields, "rid"); ok && rid != "" {
		if compact := CompactRID(rid); compact != "" && compact != rid {
			if isJSON {
				if _, seen := fields["rid_full"]; !seen {
					fields["rid_full"] = rid
				}
			}
			fields["rid"] = compact
		}
	}

	if event, ok := stringField(fields, "event"); !ok || event == "" {
		if r.Message != "" {
			fields["event"] = r.Message
		} else {
			fields["event"] = "unknown"
		}
	}
	if component, ok := stringField(fields, "component"); !ok || component == "" {
		fields["component"] = "app"
	}

	pruneEmpty(fields)

	line, err := h.formatLine(fields)
	if err != nil {
		return err
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	return h.cfg.writer.Write(line)
}

// WithAttrs returns a shallow copy of the handler enriched with attrs.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that prefixes subsequent attr keys with name.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collectAttr(fields map[string]any, groups []string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range v.Group() {
			h.collectAttr(fields, sub, ga)
		}
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(append(append([]string(nil), groups...), a.Key), ".")
	}
	switch v.Kind() {
	case slog.KindDuration:
		fields[key] = RoundMS(v.Duration()).String()
	case slog.KindTime:
		fields[key] = v.Time().UTC().Format(timeFormatMillis)
	default:
		fields[key] = v.Any()
	}
}

func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		if _, seen := fields["rid"]; !seen {
			fields["rid"] = rid
		}
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		if _, seen := fields["update_id"]; !seen {
			fields["update_id"] = id
		}
	}
	if id := UserIDFrom(ctx); id != 0 {
		if _, seen := fields["user_id"]; !seen {
			fields["user_id"] = id
		}
	}
	if id := ChatIDFrom(ctx); id != 0 {
		if _, seen := fields["chat_id"]; !seen {
			fields["chat_id"] = id
		}
	}
	if handler := HandlerFrom(ctx); handler != "" {
		if _, seen := fields["handler"]; !seen {
			fields["handler"] = handler
		}
	}
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func pruneEmpty(fields map[string]any) {
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}
}

func (h *structuredHandler) orderedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, k := range h.cfg.keyOrder {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
			seen[k] = struct{}{}
		}
	}
	var rest []string
	for k := range fields {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func (h *structuredHandler) formatLine(fields map[string]any) ([]byte, error) {
	if h.cfg.format == formatKV {
		return h.formatKVLine(fields), nil
	}
	// KV suppresses the long-form RID duplicate; JSON keeps it for search.
	return h.formatJSONLine(fields)
}

func (h *structuredHandler) formatKVLine(fields map[string]any) []byte {
	// rid_full and ts_unix_nano are JSON-only companions.
	delete(fields, "rid_full")
	delete(fields, "ts_unix_nano")

	var b strings.Builder
	for i, k := range h.orderedKeys(fields) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[k]))
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func (h *structuredHandler) formatJSONLine(fields map[string]any) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range h.orderedKeys(fields) {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(fields[k])
		if err != nil {
			val, err = json.Marshal(fmt.Sprint(fields[k]))
			if err != nil {
				return nil, err
			}
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
