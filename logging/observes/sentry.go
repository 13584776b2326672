package observes

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/ncobase/genqueue/ctxutil"
)

type SentryOptions struct {
	Dsn         string
	Name        string
	Release     string
	Environment string
	SampleRate  float64
}

var sentryEnabled bool

// NewSentry is the register sentry
func NewSentry(opt *SentryOptions) error {
	// if not exist sentry config, skip initialization
	if opt == nil || opt.Dsn == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opt.Dsn,
		AttachStacktrace: true,
		SampleRate:       opt.SampleRate,
		TracesSampleRate: opt.SampleRate,
		ServerName:       opt.Name,
		Release:          opt.Release,
		Environment:      opt.Environment,
	})
	if err != nil {
		return err
	}
	sentryEnabled = true
	return nil
}

// CaptureError reports err to Sentry tagged with the trace id of ctx and
// the given tags. It is a no-op when Sentry is not configured.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if !sentryEnabled || err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		if traceID := ctxutil.GetTraceID(ctx); traceID != "" {
			scope.SetTag(ctxutil.TraceIDKey, traceID)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// FlushSentry waits for buffered events to be sent.
func FlushSentry(timeout time.Duration) {
	if sentryEnabled {
		sentry.Flush(timeout)
	}
}
