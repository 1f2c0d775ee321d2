// Package logfields provides a chainable structured-logging field builder
// shared by the engine, resolvers, and orchestrator, plus a bridge from
// go.uber.org/zap to github.com/go-logr/logr for call sites (client-go
// among them) that expect the logr interface.
package logfields

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Fields is an unordered bag of structured log attributes built by chained
// calls, e.g. NewFields().Component("inspector").Operation("diff").
type Fields map[string]interface{}

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, name string) Fields {
	f["resource_type"] = resourceType
	if name != "" {
		f["resource_name"] = name
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int) Fields {
	f["size_bytes"] = int64(bytes)
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ZapFields renders the field set as zap.Field values for use with
// *zap.Logger.With(...).
func (f Fields) ZapFields() []zap.Field {
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// EntityFields describes a reference-drift inspection target.
func EntityFields(path string) Fields {
	return NewFields().Component("inspector").Resource("entity", path)
}

// ResolverFields describes a resolver dispatch by URL scheme.
func ResolverFields(scheme, url string) Fields {
	return NewFields().Component("resolver").Custom("scheme", scheme).URL(url)
}

// DiffFields describes a diff-interpreter invocation over a line range.
func DiffFields(fromCommit, toCommit string, from, to int) Fields {
	return NewFields().
		Component("diffinterp").
		Custom("from_commit", fromCommit).
		Custom("to_commit", toCommit).
		Custom("line_from", from).
		Custom("line_to", to)
}

// NewZapLogger builds the process-wide structured logger. format is "json"
// or "console"; level is a zap level name ("debug", "info", "warn", "error").
func NewZapLogger(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	var zl zap.AtomicLevel
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = zl
	return cfg.Build()
}

// ToLogr bridges a zap logger to the logr.Logger interface for call sites
// (e.g. the k8s+jq resolver's client-go plumbing) that expect it.
func ToLogr(z *zap.Logger) logr.Logger {
	return zapr.NewLogger(z)
}
