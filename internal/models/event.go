package models

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// NonConsentedUserID is the sentinel anonymous id substituted whenever a
// caller has not consented to tracking or supplied no identifier. Events
// carrying it never get a tracking context and are never tied to a user id.
const NonConsentedUserID = "not_consented"

// PlaceholderEventName stands in for a missing track event name so that
// failure responses and logs can still name the event.
const PlaceholderEventName = "no event name"

// TimestampLayout is the wire format for event timestamps: ISO-8601 with
// millisecond precision, always UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrNotConsented      = errors.New("user has not consented to tracking")
	ErrMissingIdentifier = errors.New("userId or anonymousId is required")
	ErrMissingEventName  = errors.New("event name is required")
)

var validate = validator.New()

// Payload is the raw JSON body accepted by the tracking endpoints. Every
// field is optional at the transport level; required-ness is enforced per
// event variant by Validate.
type Payload struct {
	UserID            *string        `json:"userId"`
	AnonymousID       string         `json:"anonymousId"`
	Event             string         `json:"event"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	OriginalTimestamp *string        `json:"originalTimestamp"`
	Traits            map[string]any `json:"traits"`
	Properties        map[string]any `json:"properties"`
	Context           map[string]any `json:"context"`
	Integrations      map[string]any `json:"integrations"`
}

// Envelope carries the fields common to all three event variants.
// AnonymousID is never empty: the request shaper substitutes the sentinel
// before an envelope is built.
type Envelope struct {
	UserID       *string
	AnonymousID  string `validate:"required"`
	Timestamp    string
	Properties   map[string]any
	Context      map[string]any
	Integrations map[string]any
}

// Identify associates traits with a user.
type Identify struct {
	Envelope
	Traits map[string]any
}

// Track records a named interaction.
type Track struct {
	Envelope
	EventName string `validate:"required"`
}

// Page records a page view.
type Page struct {
	Envelope
	Name     string
	Category string
}

func (e Envelope) hasIdentifier() bool {
	if e.UserID != nil && *e.UserID != "" {
		return true
	}
	return e.AnonymousID != ""
}

// Validate enforces the consent invariant: a real user id must never be
// associated with the sentinel anonymous id, and identify without a user id
// is meaningless.
func (e Identify) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if e.AnonymousID == NonConsentedUserID {
		return ErrNotConsented
	}
	if e.UserID == nil || *e.UserID == "" {
		return ErrMissingIdentifier
	}
	return nil
}

// Validate requires at least one identifier and a real event name. The
// placeholder counts as missing: it only exists so responses can name the
// event that failed.
func (e Track) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if e.EventName == PlaceholderEventName {
		return ErrMissingEventName
	}
	if !e.hasIdentifier() {
		return ErrMissingIdentifier
	}
	return nil
}

// Validate requires at least one identifier.
func (e Page) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	if !e.hasIdentifier() {
		return ErrMissingIdentifier
	}
	return nil
}
