package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"rankrent/internal/goals"
)

// GoalRequest is the create/update payload. IsActive defaults to true.
type GoalRequest struct {
	GoalName        string         `json:"goal_name"`
	GoalType        goals.GoalType `json:"goal_type"`
	IsActive        *bool          `json:"is_active"`
	ConversionValue float64        `json:"conversion_value"`
	CTAExactMatches []string       `json:"cta_exact_matches"`
	CTAPatterns     []string       `json:"cta_patterns"`
	PageURLs        []string       `json:"page_urls"`
	URLPatterns     []string       `json:"url_patterns"`
	MinScrollDepth  *float64       `json:"min_scroll_depth"`
	MinTimeSeconds  *float64       `json:"min_time_seconds"`
	PriorityRank    int            `json:"priority_rank"`
}

func (r GoalRequest) apply(g *goals.ConversionGoal) {
	g.GoalName = r.GoalName
	g.GoalType = r.GoalType
	g.IsActive = r.IsActive == nil || *r.IsActive
	g.ConversionValue = r.ConversionValue
	g.CTAExactMatches = r.CTAExactMatches
	g.CTAPatterns = r.CTAPatterns
	g.PageURLs = r.PageURLs
	g.URLPatterns = r.URLPatterns
	g.MinScrollDepth = r.MinScrollDepth
	g.MinTimeSeconds = r.MinTimeSeconds
	g.PriorityRank = r.PriorityRank
}

type GoalsHandler struct {
	store *goals.Store
}

func NewGoalsHandler(store *goals.Store) *GoalsHandler {
	return &GoalsHandler{store: store}
}

func (h *GoalsHandler) respond(ctx *cartridge.Context, err error) error {
	if errors.Is(err, goals.ErrInvalidGoal) {
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
			"code":  codeInvalidGoal,
		})
	}
	if errors.Is(err, goals.ErrNotFound) {
		return respondError(ctx, err)
	}
	return respondError(ctx, engineUnavailable(err))
}

func goalID(ctx *cartridge.Context) (uint, bool) {
	id, err := ctx.ParamsInt("goal_id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// GoalsIndexAction lists every goal of the site.
func (h *GoalsHandler) GoalsIndexAction(ctx *cartridge.Context) error {
	list, err := h.store.List(ctx.UserContext(), siteID(ctx))
	if err != nil {
		return h.respond(ctx, err)
	}
	return ctx.JSON(fiber.Map{"goals": list})
}

func (h *GoalsHandler) GoalShowAction(ctx *cartridge.Context) error {
	id, ok := goalID(ctx)
	if !ok {
		return badRequest(ctx, codeInvalidQuery, "Invalid goal id")
	}
	g, err := h.store.Get(ctx.UserContext(), siteID(ctx), id)
	if err != nil {
		return h.respond(ctx, err)
	}
	return ctx.JSON(g)
}

// GoalCreateAction validates and stores a goal. It applies to events processed from now on.
func (h *GoalsHandler) GoalCreateAction(ctx *cartridge.Context) error {
	var req GoalRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, codeInvalidGoal, "Invalid request format")
	}
	g := goals.ConversionGoal{SiteID: siteID(ctx)}
	req.apply(&g)

	if err := h.store.Create(ctx.UserContext(), &g); err != nil {
		return h.respond(ctx, err)
	}
	ctx.Logger.Info("Goal created",
		slog.Uint64("site_id", uint64(g.SiteID)),
		slog.Uint64("goal_id", uint64(g.ID)),
		slog.String("goal_type", string(g.GoalType)))
	return ctx.Status(fiber.StatusCreated).JSON(g)
}

func (h *GoalsHandler) GoalUpdateAction(ctx *cartridge.Context) error {
	id, ok := goalID(ctx)
	if !ok {
		return badRequest(ctx, codeInvalidQuery, "Invalid goal id")
	}
	var req GoalRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest(ctx, codeInvalidGoal, "Invalid request format")
	}
	g := goals.ConversionGoal{ID: id, SiteID: siteID(ctx)}
	req.apply(&g)

	if err := h.store.Update(ctx.UserContext(), &g); err != nil {
		return h.respond(ctx, err)
	}
	return ctx.JSON(g)
}

func (h *GoalsHandler) setActive(ctx *cartridge.Context, active bool) error {
	id, ok := goalID(ctx)
	if !ok {
		return badRequest(ctx, codeInvalidQuery, "Invalid goal id")
	}
	if err := h.store.SetActive(ctx.UserContext(), siteID(ctx), id, active); err != nil {
		return h.respond(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *GoalsHandler) GoalActivateAction(ctx *cartridge.Context) error {
	return h.setActive(ctx, true)
}

func (h *GoalsHandler) GoalDeactivateAction(ctx *cartridge.Context) error {
	return h.setActive(ctx, false)
}

func (h *GoalsHandler) GoalDeleteAction(ctx *cartridge.Context) error {
	id, ok := goalID(ctx)
	if !ok {
		return badRequest(ctx, codeInvalidQuery, "Invalid goal id")
	}
	if err := h.store.Delete(ctx.UserContext(), siteID(ctx), id); err != nil {
		return h.respond(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
