package tracing

import (
	"log/slog"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrHandler ends span, marking it failed when err is set. err is returned
// unchanged.
func ErrHandler(span trace.Span, err error, message string, l *slog.Logger) error {
	defer span.End()

	if err != nil {
		if l != nil {
			l.Debug(message, "err", err)
		}
		span.SetStatus(codes.Error, errors.Wrap(err, message).Error())
	} else {
		span.SetStatus(codes.Ok, "ok")
	}
	return err
}
