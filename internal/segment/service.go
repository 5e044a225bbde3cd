// Package segment is the forwarding facade in front of the Segment client.
// Each operation validates an event envelope, enforces the consent and
// identifier invariants, and schedules a deferred delivery task that runs
// after the HTTP response has been written. Delivery failures are logged and
// counted, never surfaced to the original caller.
package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	analytics "github.com/segmentio/analytics-go/v3"

	"github.com/tracelayer/tracking-api/internal/metrics"
	"github.com/tracelayer/tracking-api/internal/models"
	"github.com/tracelayer/tracking-api/internal/scheduler"
)

// Service forwards normalized events to the provider client.
type Service struct {
	forwarder  Forwarder
	log        zerolog.Logger
	metrics    *metrics.Metrics
	sourceName string
}

func NewService(f Forwarder, log zerolog.Logger, m *metrics.Metrics, sourceName string) *Service {
	return &Service{
		forwarder:  f,
		log:        log.With().Str("component", "forwarding").Logger(),
		metrics:    m,
		sourceName: sourceName,
	}
}

// Identify validates and schedules an identify event. A validation failure
// (consent violation, missing user id) is returned so the caller can log it;
// the endpoint still answers the client normally.
func (s *Service) Identify(q scheduler.Scheduler, ev models.Identify) error {
	if err := ev.Validate(); err != nil {
		s.metrics.EventsDropped.WithLabelValues("identify", "validation").Inc()
		return fmt.Errorf("identify rejected: %w", err)
	}

	q.Schedule(func(ctx context.Context) {
		s.run(ctx, "identify", ev.AnonymousID, func(ctx context.Context) error {
			return s.deliverIdentify(ctx, ev)
		})
	})
	return nil
}

// Track validates and schedules a track event, reporting failure as a flag so
// the endpoint can translate it into a server error response.
func (s *Service) Track(q scheduler.Scheduler, ev models.Track) bool {
	if err := ev.Validate(); err != nil {
		s.log.Error().Err(err).Str("event", ev.EventName).Msg("track rejected")
		s.metrics.EventsDropped.WithLabelValues("track", "validation").Inc()
		return false
	}

	q.Schedule(func(ctx context.Context) {
		s.run(ctx, "track", ev.AnonymousID, func(ctx context.Context) error {
			return s.deliverTrack(ctx, ev)
		})
	})
	return true
}

// PageViewed validates and schedules a page event. Validation errors are
// returned to the handler, which decides the response policy.
func (s *Service) PageViewed(q scheduler.Scheduler, ev models.Page) error {
	if err := ev.Validate(); err != nil {
		s.metrics.EventsDropped.WithLabelValues("page", "validation").Inc()
		return fmt.Errorf("page view rejected: %w", err)
	}

	q.Schedule(func(ctx context.Context) {
		s.run(ctx, "page", ev.AnonymousID, func(ctx context.Context) error {
			return s.deliverPage(ctx, ev)
		})
	})
	return nil
}

// run executes one deferred delivery and owns the error policy: the delivery
// step reports an explicit error, the runner logs and counts it. Nothing
// propagates further; the response is long gone.
func (s *Service) run(ctx context.Context, eventType, anonymousID string, deliver func(context.Context) error) {
	if err := deliver(ctx); err != nil {
		s.log.Error().Err(err).
			Str("type", eventType).
			Str("anonymous_id", anonymousID).
			Msg("event dropped")
		s.metrics.EventsDropped.WithLabelValues(eventType, "delivery").Inc()
		return
	}
	s.metrics.EventsForwarded.WithLabelValues(eventType).Inc()
	s.log.Info().
		Str("type", eventType).
		Str("anonymous_id", anonymousID).
		Msg("event forwarded")
}

func (s *Service) deliverIdentify(_ context.Context, ev models.Identify) error {
	ts, err := parseTimestamp(ev.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}

	msg := analytics.Identify{
		AnonymousId:  ev.AnonymousID,
		Timestamp:    ts,
		Traits:       analytics.Traits(ev.Traits),
		Context:      toContext(ev.Context),
		Integrations: analytics.Integrations(ev.Integrations),
	}
	if ev.UserID != nil {
		msg.UserId = *ev.UserID
	}
	return s.forwarder.Identify(msg)
}

func (s *Service) deliverTrack(_ context.Context, ev models.Track) error {
	ts, err := parseTimestamp(ev.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}

	msg := analytics.Track{
		Event:        ev.EventName,
		AnonymousId:  ev.AnonymousID,
		Timestamp:    ts,
		Properties:   analytics.Properties(ev.Properties),
		Context:      toContext(ev.Context),
		Integrations: analytics.Integrations(ev.Integrations),
	}
	if ev.UserID != nil {
		msg.UserId = *ev.UserID
	}
	return s.forwarder.Track(msg)
}

func (s *Service) deliverPage(_ context.Context, ev models.Page) error {
	ts, err := parseTimestamp(ev.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}

	// Page properties carry the source tag; the client's Page message has no
	// category field, so the category travels as a property as well.
	props := make(analytics.Properties, len(ev.Properties)+2)
	for k, v := range ev.Properties {
		props[k] = v
	}
	props["source"] = s.sourceName
	if ev.Category != "" {
		props["category"] = ev.Category
	}

	msg := analytics.Page{
		Name:         ev.Name,
		AnonymousId:  ev.AnonymousID,
		Timestamp:    ts,
		Properties:   props,
		Context:      toContext(ev.Context),
		Integrations: analytics.Integrations(ev.Integrations),
	}
	if ev.UserID != nil {
		msg.UserId = *ev.UserID
	}
	return s.forwarder.Page(msg)
}

// parseTimestamp converts the envelope's string timestamp. Empty means the
// caller supplied none; the zero time lets the client stamp the send instant.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, nil
	}
	return time.Parse(models.TimestampLayout, ts)
}
