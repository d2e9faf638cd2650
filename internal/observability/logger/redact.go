package logger

import (
	"github.com/smallbiznis/identity/internal/audit/masking"
	"go.uber.org/zap/zapcore"
)

// redactingCore masks string fields whose keys mark them as secrets or email
// addresses, e.g. invitation tokens and invitee emails.
type redactingCore struct {
	zapcore.Core
}

func NewRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *redactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, field := range fields {
		if field.Type != zapcore.StringType {
			continue
		}
		masked := masking.MaskField(field.Key, field.String)
		if masked == field.String {
			continue
		}
		if out == nil {
			out = append(make([]zapcore.Field, 0, len(fields)), fields...)
		}
		out[i].String = masked
	}
	if out == nil {
		return fields
	}
	return out
}
