package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tracelayer/tracking-api/internal/config"
	"github.com/tracelayer/tracking-api/internal/models"
	"github.com/tracelayer/tracking-api/internal/scheduler"
	"github.com/tracelayer/tracking-api/internal/segment"
	"github.com/tracelayer/tracking-api/internal/shaper"
)

// anonymousIDCookie is the cookie carrying the issued anonymous id.
const anonymousIDCookie = "anonymous_id"

// Tracking holds the authenticated tracking endpoints.
type Tracking struct {
	cfg config.Config
	svc *segment.Service
	log zerolog.Logger
	now func() time.Time
}

// RegisterTrackingRoutes registers the authenticated tracking endpoints on r.
//
// GET  /            greeting
// GET  /anonymous_id issues a fresh anonymous id (body + cookie)
// POST /identify    associates traits with a consented user
// POST /track       records a named interaction
// POST /page        records a page view
func RegisterTrackingRoutes(r gin.IRoutes, cfg config.Config, svc *segment.Service, log zerolog.Logger) {
	h := &Tracking{cfg: cfg, svc: svc, log: log, now: time.Now}

	r.GET("/", h.root)
	r.GET("/anonymous_id", h.anonymousID)
	r.POST("/identify", h.identify)
	r.POST("/track", h.track)
	r.POST("/page", h.page)
}

func (h *Tracking) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the " + h.cfg.APITitle})
}

// anonymousID issues a fresh identifier and mirrors it into a cross-site
// capable cookie so browser clients can persist consent-scoped identity.
func (h *Tracking) anonymousID(c *gin.Context) {
	id := uuid.NewString()

	// SameSite=None is required for cross-site usage; Secure only outside
	// local development since local callers are plain HTTP.
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(anonymousIDCookie, id, 0, "/", h.cfg.CookieDomain(), h.cfg.Production(), false)

	c.JSON(http.StatusOK, gin.H{anonymousIDCookie: id})
}

func (h *Tracking) identify(c *gin.Context) {
	p, ok := bindPayload(c)
	if !ok {
		return
	}

	env, _ := shaper.BuildEnvelope(c.Request, p, true, h.now())
	ev := models.Identify{Envelope: env, Traits: orEmpty(p.Traits)}

	// A sentinel anonymous id must never be associated with a user id.
	if env.AnonymousID == models.NonConsentedUserID {
		msg := fmt.Sprintf("User (%s) was not identified", models.NonConsentedUserID)
		h.log.Warn().Msg(msg)
		c.JSON(http.StatusOK, gin.H{"message": msg})
		return
	}

	if err := h.svc.Identify(scheduler.FromContext(c), ev); err != nil {
		// Skipped, not fatal: the caller still gets a normal response.
		h.log.Error().Err(err).Msg("identify skipped")
	}

	c.JSON(http.StatusOK, gin.H{"message": "User identified successfully"})
}

func (h *Tracking) track(c *gin.Context) {
	p, ok := bindPayload(c)
	if !ok {
		return
	}

	env, eventName := shaper.BuildEnvelope(c.Request, p, false, h.now())
	ev := models.Track{Envelope: env, EventName: eventName}

	if !h.svc.Track(scheduler.FromContext(c), ev) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": fmt.Sprintf("Event track failed. Check logs for event: %s", eventName),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event tracked successfully"})
}

func (h *Tracking) page(c *gin.Context) {
	p, ok := bindPayload(c)
	if !ok {
		return
	}

	env, _ := shaper.BuildEnvelope(c.Request, p, false, h.now())
	ev := models.Page{Envelope: env, Name: p.Name, Category: p.Category}

	if err := h.svc.PageViewed(scheduler.FromContext(c), ev); err != nil {
		if h.cfg.PageStrict {
			c.JSON(http.StatusInternalServerError, gin.H{
				"detail": fmt.Sprintf("Page view failed: %s", err),
			})
			return
		}
		h.log.Error().Err(err).Msg("page view skipped")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page view tracked successfully"})
}

// bindPayload decodes the JSON body. An empty body is the empty payload, not
// an error; malformed JSON is a 400.
func bindPayload(c *gin.Context) (models.Payload, bool) {
	var p models.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return p, true
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid JSON payload"})
		return p, false
	}
	return p, true
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
