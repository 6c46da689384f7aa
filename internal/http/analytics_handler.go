package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"rankrent/internal/analytics"
	"rankrent/internal/conversions"
	"rankrent/internal/engine"
	"rankrent/internal/timeframe"
)

// AnalyticsHandler serves the read side of the dashboard API.
type AnalyticsHandler struct {
	engine      *engine.Engine
	conversions *conversions.Store
	parser      *timeframe.Parser
}

func NewAnalyticsHandler(eng *engine.Engine, convs *conversions.Store, parser *timeframe.Parser) *AnalyticsHandler {
	if parser == nil {
		parser = timeframe.NewParser()
	}
	return &AnalyticsHandler{engine: eng, conversions: convs, parser: parser}
}

// SessionsIndexAction lists reconstructed sessions.
// GET /api/v1/sites/:site_id/sessions?from&to&tz&page&page_size&<filter>
func (h *AnalyticsHandler) SessionsIndexAction(ctx *cartridge.Context) error {
	rng, err := parseRange(ctx, h.parser, "")
	if err != nil {
		return badRequest(ctx, codeInvalidQuery, err.Error())
	}
	page := analytics.Page{Number: ctx.QueryInt("page", 1), Size: ctx.QueryInt("page_size")}

	result, err := h.engine.ReconstructSessions(ctx.UserContext(), siteID(ctx), rng, parseFilter(ctx), page)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(result)
}

// ReportAction returns the aggregate report of a window.
func (h *AnalyticsHandler) ReportAction(ctx *cartridge.Context) error {
	rng, err := parseRange(ctx, h.parser, "")
	if err != nil {
		return badRequest(ctx, codeInvalidQuery, err.Error())
	}
	report, err := h.engine.Aggregate(ctx.UserContext(), siteID(ctx), rng, parseFilter(ctx))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(fiber.Map{
		"range":  rng,
		"report": report,
	})
}

// CompareAction diffs a window against prev_from/prev_to, or the window right before it.
func (h *AnalyticsHandler) CompareAction(ctx *cartridge.Context) error {
	current, err := parseRange(ctx, h.parser, "")
	if err != nil {
		return badRequest(ctx, codeInvalidQuery, err.Error())
	}
	var previous timeframe.Range
	if ctx.Query("prev_from") != "" {
		previous, err = parseRange(ctx, h.parser, "prev_")
		if err != nil {
			return badRequest(ctx, codeInvalidQuery, err.Error())
		}
	}

	cmp, err := h.engine.Compare(ctx.UserContext(), siteID(ctx), current, previous, parseFilter(ctx))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(cmp)
}

// ConversionsIndexAction lists stored conversions of a window, newest first.
func (h *AnalyticsHandler) ConversionsIndexAction(ctx *cartridge.Context) error {
	rng, err := parseRange(ctx, h.parser, "")
	if err != nil {
		return badRequest(ctx, codeInvalidQuery, err.Error())
	}
	list, err := h.conversions.List(ctx.UserContext(), siteID(ctx), rng)
	if err != nil {
		return respondError(ctx, engineUnavailable(err))
	}
	return ctx.JSON(fiber.Map{
		"conversions": list,
		"total":       len(list),
	})
}

// JourneyAction rebuilds the journey of one conversion.
// GET /api/v1/sites/:site_id/conversions/:conversion_id/journey
func (h *AnalyticsHandler) JourneyAction(ctx *cartridge.Context) error {
	id := ctx.Params("conversion_id")
	conv, err := h.conversions.Get(ctx.UserContext(), id)
	if errors.Is(err, conversions.ErrNotFound) || (err == nil && conv.SiteID != siteID(ctx)) {
		return respondError(ctx, engine.ErrNotFound)
	}
	if err != nil {
		return respondError(ctx, engineUnavailable(err))
	}

	journey, err := h.engine.BuildJourney(ctx.UserContext(), id)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(journey)
}
