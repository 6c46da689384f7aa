package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"rankrent/internal/sites"
	"rankrent/internal/tracking"
)

const (
	msgEventAdded     = "Event added successfully"
	errInvalidRequest = "Invalid request"
	errInvalidOrigin  = "Invalid origin"
)

// EventsAPI is the public collector endpoint the tracking script posts to.
type EventsAPI struct {
	collector *tracking.Collector
}

func NewEventsAPI(collector *tracking.Collector) *EventsAPI {
	return &EventsAPI{collector: collector}
}

// CreateEventAction stores one tracking event.
// POST /x/api/v1/events
func (a *EventsAPI) CreateEventAction(ctx *cartridge.Context) error {
	var input tracking.CollectInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequest})
	}

	site, err := resolveSite(ctx)
	if err != nil {
		return ctx.Status(http.StatusForbidden).JSON(fiber.Map{"error": errInvalidOrigin})
	}

	input.IPAddress = getClientIP(ctx.Ctx)
	input.UserAgent = userAgent(ctx)

	ev, stored, err := a.collector.Collect(ctx.UserContext(), site.ID, input)
	if err != nil {
		if errors.Is(err, tracking.ErrInvalidEvent) {
			ctx.Logger.Debug("Rejected tracking event", slog.Any("error", err))
			return ctx.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "INVALID_EVENT",
			})
		}
		ctx.Logger.Error("Failed to collect event", slog.Any("error", err))
		return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Failed to collect event",
			"code":  "COLLECTION_ERROR",
		})
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message":   msgEventAdded,
		"status":    http.StatusAccepted,
		"event_id":  ev.EventID,
		"duplicate": !stored,
	})
}

// CreateEventBeaconAction handles navigator.sendBeacon payloads (text/plain).
// It always answers 202: beacons cannot read the response.
func (a *EventsAPI) CreateEventBeaconAction(ctx *cartridge.Context) error {
	var input tracking.CollectInput
	if err := json.Unmarshal(ctx.Body(), &input); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}

	site, err := resolveSite(ctx)
	if err != nil {
		return ctx.SendStatus(http.StatusAccepted)
	}

	input.IPAddress = getClientIP(ctx.Ctx)
	input.UserAgent = userAgent(ctx)
	if _, _, err := a.collector.Collect(ctx.UserContext(), site.ID, input); err != nil {
		ctx.Logger.Debug("Failed to collect beacon event",
			slog.String("event_type", input.EventType),
			slog.Any("error", err))
	}
	return ctx.SendStatus(http.StatusAccepted)
}

func userAgent(ctx *cartridge.Context) string {
	if forwarded := ctx.Get("X-Forwarded-User-Agent"); forwarded != "" {
		return forwarded
	}
	return ctx.Get("User-Agent")
}

// resolveSite maps the Origin (or Referer) host to a registered site. Browsers
// set Origin themselves, so scripts on other domains cannot post as the site.
func resolveSite(ctx *cartridge.Context) (*sites.Site, error) {
	origin := ctx.Get("Origin")
	if origin == "" {
		origin = ctx.Get("Referer")
	}
	if origin == "" {
		return nil, errors.New("no origin")
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		ctx.Logger.Debug("Failed to parse origin", slog.String("origin", origin))
		return nil, errors.New("invalid origin")
	}

	site, err := sites.GetSiteByDomain(ctx.DB(), strings.ToLower(parsed.Hostname()))
	if err != nil {
		ctx.Logger.Debug("Origin domain not registered",
			slog.String("origin", origin),
			slog.String("base_domain", sites.BaseDomainForHost(parsed.Hostname())))
		return nil, err
	}
	return site, nil
}
