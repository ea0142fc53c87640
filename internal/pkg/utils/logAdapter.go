package utils

import (
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/rs/zerolog"
	"github.com/vgarvardt/gue/v5/adapter"
)

// GueLogAdapter passes gue pool logs to goapp.Log
type GueLogAdapter struct {
	fields []adapter.Field
}

// NewGueLoggerAdapter creates the adapter
func NewGueLoggerAdapter() *GueLogAdapter {
	return &GueLogAdapter{}
}

// Debug implements adapter.Logger
func (l *GueLogAdapter) Debug(msg string, fields ...adapter.Field) {
	l.do(goapp.Log.Debug(), fields...).Msg(msg)
}

// Info implements adapter.Logger, gue is chatty on info so it goes to debug
func (l *GueLogAdapter) Info(msg string, fields ...adapter.Field) {
	l.do(goapp.Log.Debug(), fields...).Msg(msg)
}

// Error implements adapter.Logger
func (l *GueLogAdapter) Error(msg string, fields ...adapter.Field) {
	l.do(goapp.Log.Error(), fields...).Msg(msg)
}

// With implements adapter.Logger, fields are added to the already set ones
func (l *GueLogAdapter) With(fields ...adapter.Field) adapter.Logger {
	res := make([]adapter.Field, 0, len(l.fields)+len(fields))
	res = append(res, l.fields...)
	return &GueLogAdapter{fields: append(res, fields...)}
}

func (l *GueLogAdapter) do(le *zerolog.Event, fields ...adapter.Field) *zerolog.Event {
	for _, f := range l.fields {
		le = addField(le, f)
	}
	for _, f := range fields {
		le = addField(le, f)
	}
	return le
}

func addField(le *zerolog.Event, f adapter.Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case error:
		return le.AnErr(f.Key, v)
	case string:
		return le.Str(f.Key, v)
	default:
		return le.Interface(f.Key, v)
	}
}
