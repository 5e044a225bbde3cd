// Package shaper turns raw request payloads and headers into normalized
// event envelopes for the forwarding facade.
package shaper

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tracelayer/tracking-api/internal/models"
)

// ResolveIdentity extracts the identity pair from a payload. The user id is
// kept as supplied (nil when the key was absent); an empty anonymous id is
// replaced with the non-consented sentinel so it is never empty downstream.
func ResolveIdentity(p models.Payload) (userID *string, anonymousID string) {
	anonymousID = p.AnonymousID
	if anonymousID == "" {
		anonymousID = models.NonConsentedUserID
	}
	return p.UserID, anonymousID
}

// BuildProperties shapes the payload's properties object for the provider.
// When the payload carries a url and the request an Origin header, the origin
// prefix is stripped and the remainder split into path and search. The
// referrer header and the caller's original timestamp are always echoed.
func BuildProperties(r *http.Request, p models.Payload) map[string]any {
	props := make(map[string]any, len(p.Properties)+4)
	for k, v := range p.Properties {
		props[k] = v
	}

	origin := r.Header.Get("Origin")
	if u, ok := props["url"].(string); ok && origin != "" {
		path, search, _ := strings.Cut(strings.ReplaceAll(u, origin, ""), "?")
		props["path"] = path
		props["search"] = search
	}

	props["referrer"] = r.Header.Get("Referer")
	if p.OriginalTimestamp != nil {
		props["originalTimestamp"] = *p.OriginalTimestamp
	} else {
		props["originalTimestamp"] = nil
	}

	// Page events carry a name.
	if p.Name != "" {
		props["name"] = p.Name
	}

	return props
}

// BuildContext shapes the tracking context. Hard privacy invariant: a caller
// resolved to the sentinel anonymous id gets an empty context, whatever the
// payload contained. Otherwise the caller-supplied context is overlaid with
// the request's network identity and a page object equal to the properties
// minus name.
func BuildContext(r *http.Request, p models.Payload, props map[string]any, anonymousID string) map[string]any {
	if anonymousID == models.NonConsentedUserID {
		return map[string]any{}
	}

	ctx := make(map[string]any, len(p.Context)+4)
	for k, v := range p.Context {
		ctx[k] = v
	}

	ctx["ip"] = clientIP(r)
	ctx["userAgent"] = r.Header.Get("User-Agent")
	ctx["locale"] = strings.Split(r.Header.Get("Accept-Language"), ",")[0]

	page := make(map[string]any, len(props))
	for k, v := range props {
		page[k] = v
	}
	delete(page, "name")
	ctx["page"] = page

	return ctx
}

// BuildEnvelope assembles the common event envelope. The timestamp defaults
// to now (UTC, millisecond ISO-8601) when the caller supplied none; the event
// name defaults to the placeholder so failures can still name the event.
func BuildEnvelope(r *http.Request, p models.Payload, excludeProperties bool, now time.Time) (models.Envelope, string) {
	userID, anonymousID := ResolveIdentity(p)

	ts := now.UTC().Format(models.TimestampLayout)
	if p.OriginalTimestamp != nil {
		ts = *p.OriginalTimestamp
	}

	eventName := p.Event
	if eventName == "" {
		eventName = models.PlaceholderEventName
	}

	integrations := p.Integrations
	if integrations == nil {
		integrations = map[string]any{}
	}

	env := models.Envelope{
		UserID:       userID,
		AnonymousID:  anonymousID,
		Timestamp:    ts,
		Integrations: integrations,
	}

	props := BuildProperties(r, p)
	if !excludeProperties {
		env.Properties = props
	}
	env.Context = BuildContext(r, p, props, anonymousID)

	return env, eventName
}

// clientIP prefers the first X-Forwarded-For entry, falling back to the
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
