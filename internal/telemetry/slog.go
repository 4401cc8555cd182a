package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// bridgeScope names the OTel logger that receives slog records.
const bridgeScope = "agendasync"

// NewLogger returns the process logger. Records at or above level go to w as
// text. When exportLogs is true they are also emitted through the global OTel
// logger provider, which [Setup] points at the collector.
func NewLogger(w io.Writer, level slog.Leveler, exportLogs bool) *slog.Logger {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if !exportLogs {
		return slog.New(text)
	}
	otelHandler := NewLogHandler(global.GetLoggerProvider().Logger(bridgeScope), level)
	return slog.New(Fanout(text, otelHandler))
}

// LogHandler is a slog.Handler that forwards records to an OTel logger.
type LogHandler struct {
	logger otellog.Logger
	level  slog.Leveler
	attrs  []otellog.KeyValue
	prefix string
}

// NewLogHandler returns a handler emitting to logger. A nil level means info.
func NewLogHandler(logger otellog.Logger, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{logger: logger, level: level}
}

// Enabled implements slog.Handler.
func (h *LogHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	var rec otellog.Record
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now())
	rec.SetBody(otellog.StringValue(r.Message))
	rec.SetSeverity(severity(r.Level))
	rec.SetSeverityText(r.Level.String())
	rec.AddAttributes(h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		rec.AddAttributes(convertAttr(h.prefix, a)...)
		return true
	})
	h.logger.Emit(ctx, rec)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]otellog.KeyValue(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, convertAttr(h.prefix, a)...)
	}
	return &next
}

// WithGroup implements slog.Handler. Groups flatten into dotted keys.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func severity(l slog.Level) otellog.Severity {
	switch {
	case l >= slog.LevelError:
		return otellog.SeverityError
	case l >= slog.LevelWarn:
		return otellog.SeverityWarn
	case l >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}

func convertAttr(prefix string, a slog.Attr) []otellog.KeyValue {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return nil
	}
	key := prefix + a.Key
	v := a.Value
	switch v.Kind() {
	case slog.KindGroup:
		var out []otellog.KeyValue
		p := prefix
		if a.Key != "" {
			p = key + "."
		}
		for _, ga := range v.Group() {
			out = append(out, convertAttr(p, ga)...)
		}
		return out
	case slog.KindString:
		return []otellog.KeyValue{otellog.String(key, v.String())}
	case slog.KindInt64:
		return []otellog.KeyValue{otellog.Int64(key, v.Int64())}
	case slog.KindUint64:
		return []otellog.KeyValue{otellog.Int64(key, int64(v.Uint64()))} //nolint:gosec // counters stay well below 2^63
	case slog.KindFloat64:
		return []otellog.KeyValue{otellog.Float64(key, v.Float64())}
	case slog.KindBool:
		return []otellog.KeyValue{otellog.Bool(key, v.Bool())}
	case slog.KindDuration:
		return []otellog.KeyValue{otellog.String(key, v.Duration().String())}
	case slog.KindTime:
		return []otellog.KeyValue{otellog.String(key, v.Time().Format(time.RFC3339Nano))}
	default:
		if err, ok := v.Any().(error); ok {
			return []otellog.KeyValue{otellog.String(key, err.Error())}
		}
		return []otellog.KeyValue{otellog.String(key, fmt.Sprint(v.Any()))}
	}
}

// Fanout returns a handler that passes every record to each of handlers.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
