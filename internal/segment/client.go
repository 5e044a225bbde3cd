package segment

import (
	"net"
	"time"

	"github.com/rs/zerolog"
	analytics "github.com/segmentio/analytics-go/v3"

	"github.com/tracelayer/tracking-api/internal/config"
	"github.com/tracelayer/tracking-api/internal/metrics"
)

// Forwarder is the narrow surface of the provider client the facade needs.
// The real implementation wraps segmentio/analytics-go; tests substitute a
// capture fake.
type Forwarder interface {
	Identify(analytics.Identify) error
	Track(analytics.Track) error
	Page(analytics.Page) error
	Close() error
}

type segmentForwarder struct {
	client analytics.Client
}

// NewForwarder builds the Segment client configured for unbatched delivery:
// one event per network call, a short fixed retry backoff, so each deferred
// task either fully succeeds or fully fails within bounded time. Transport
// and retry beyond that are the client library's business.
func NewForwarder(cfg config.Config, log zerolog.Logger, m *metrics.Metrics) (Forwarder, error) {
	clog := log.With().Str("component", "segment").Logger()

	acfg := analytics.Config{
		BatchSize: 1,
		Interval:  100 * time.Millisecond,
		RetryAfter: func(attempt int) time.Duration {
			return time.Second
		},
		Logger:   clientLogger{clog},
		Callback: clientCallback{log: clog, metrics: m},
	}
	if cfg.SegmentEndpoint != "" {
		acfg.Endpoint = cfg.SegmentEndpoint
	}

	client, err := analytics.NewWithConfig(cfg.SegmentWriteKey, acfg)
	if err != nil {
		return nil, err
	}
	return segmentForwarder{client: client}, nil
}

func (f segmentForwarder) Identify(m analytics.Identify) error { return f.client.Enqueue(m) }
func (f segmentForwarder) Track(m analytics.Track) error       { return f.client.Enqueue(m) }
func (f segmentForwarder) Page(m analytics.Page) error         { return f.client.Enqueue(m) }
func (f segmentForwarder) Close() error                        { return f.client.Close() }

// clientLogger adapts the Segment client's logging to zerolog.
type clientLogger struct {
	log zerolog.Logger
}

func (l clientLogger) Logf(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l clientLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

// clientCallback observes per-message delivery outcomes. Failures are
// terminal: the response was sent long ago, so the event is logged, counted
// and dropped.
type clientCallback struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func (cb clientCallback) Success(m analytics.Message) {
	cb.log.Debug().Str("type", messageType(m)).Msg("event delivered")
}

func (cb clientCallback) Failure(m analytics.Message, err error) {
	t := messageType(m)
	cb.log.Error().Err(err).Str("type", t).Msg("event delivery failed, dropping")
	cb.metrics.EventsDropped.WithLabelValues(t, "delivery").Inc()
}

func messageType(m analytics.Message) string {
	switch m.(type) {
	case analytics.Identify:
		return "identify"
	case analytics.Track:
		return "track"
	case analytics.Page:
		return "page"
	default:
		return "unknown"
	}
}

// toContext maps the shaped context dictionary onto the client's structured
// context. Known keys go to their structured fields; the rest ride along in
// Extra, which the client merges back at the top level on the wire.
func toContext(m map[string]any) *analytics.Context {
	if len(m) == 0 {
		return nil
	}
	ctx := &analytics.Context{Extra: map[string]interface{}{}}
	for k, v := range m {
		switch k {
		case "ip":
			if s, ok := v.(string); ok {
				ctx.IP = net.ParseIP(s)
			}
		case "userAgent":
			ctx.UserAgent, _ = v.(string)
		case "locale":
			ctx.Locale, _ = v.(string)
		case "page":
			if pm, ok := v.(map[string]any); ok {
				ctx.Page = toPageInfo(pm)
			}
		default:
			ctx.Extra[k] = v
		}
	}
	return ctx
}

func toPageInfo(m map[string]any) analytics.PageInfo {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return analytics.PageInfo{
		Path:     str("path"),
		Referrer: str("referrer"),
		Search:   str("search"),
		Title:    str("title"),
		URL:      str("url"),
	}
}
