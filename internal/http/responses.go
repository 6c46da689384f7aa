package http

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"rankrent/internal/analytics"
	"rankrent/internal/engine"
	"rankrent/internal/goals"
	"rankrent/internal/timeframe"
)

const (
	codeUnavailable  = "ANALYTICS_UNAVAILABLE"
	codeNotFound     = "NOT_FOUND"
	codeInvalidQuery = "INVALID_QUERY"
	codeInvalidGoal  = "INVALID_GOAL"
)

// respondError maps engine and store errors to JSON responses.
func respondError(ctx *cartridge.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrUnavailable):
		ctx.Logger.Warn("Analytics store unavailable", slog.String("path", ctx.Path()), slog.Any("error", err))
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Analytics temporarily unavailable",
			"code":  codeUnavailable,
		})
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, goals.ErrNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
			"code":  codeNotFound,
		})
	case errors.Is(err, timeframe.ErrInvalidRange):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  codeInvalidQuery,
		})
	}
	ctx.Logger.Error("Request failed", slog.String("path", ctx.Path()), slog.Any("error", err))
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func badRequest(ctx *cartridge.Context, code, msg string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}

// siteID reads the id stored by middleware.SiteScope.
func siteID(ctx *cartridge.Context) uint {
	id, _ := ctx.Locals("site_id").(uint)
	return id
}

// parseRange reads from/to/tz with the given prefix ("" or "prev_").
func parseRange(ctx *cartridge.Context, parser *timeframe.Parser, prefix string) (timeframe.Range, error) {
	return parser.Parse(timeframe.ParserParams{
		FromDate: ctx.Query(prefix + "from"),
		ToDate:   ctx.Query(prefix + "to"),
		Tz:       ctx.Query("tz"),
	})
}

// parseFilter reads the session filter from the query string.
func parseFilter(ctx *cartridge.Context) analytics.Filter {
	f := analytics.Filter{
		MinPages:           ctx.QueryInt("min_pages"),
		MinDurationSeconds: ctx.QueryFloat("min_duration"),
		Device:             ctx.Query("device"),
		Country:            ctx.Query("country"),
		City:               ctx.Query("city"),
		ExcludeBots:        ctx.QueryBool("exclude_bots"),
	}
	if raw := ctx.Query("has_conversion"); raw != "" {
		v := ctx.QueryBool("has_conversion")
		f.HasConversion = &v
	}
	return f
}

// engineUnavailable marks a direct store failure as retryable.
func engineUnavailable(err error) error {
	return fmt.Errorf("%w: %w", engine.ErrUnavailable, err)
}
