package http

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"rankrent/internal/onboarding"
)

// OnboardingFlagRequest carries the optional data stored with a step.
type OnboardingFlagRequest struct {
	Dismissed bool   `json:"dismissed"`
	Variant   string `json:"variant"`
}

// onboardingUser identifies the dashboard user; flags are per site and per user.
func onboardingUser(ctx *cartridge.Context) string {
	if user := strings.TrimSpace(ctx.Get("X-User-ID")); user != "" {
		return user
	}
	return strings.TrimSpace(ctx.Query("user_id"))
}

// OnboardingStateAction reports which onboarding steps the user has already seen.
func OnboardingStateAction(ctx *cartridge.Context) error {
	user := onboardingUser(ctx)
	if user == "" {
		return badRequest(ctx, codeInvalidQuery, "user_id is required")
	}

	state, err := onboarding.GetState(ctx.DB(), siteID(ctx), user)
	if err != nil {
		ctx.Logger.Error("Failed to load onboarding state", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load onboarding state",
		})
	}
	required, err := onboarding.IsRequired(ctx.DB(), siteID(ctx), user)
	if err != nil {
		ctx.Logger.Error("Failed to check onboarding", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load onboarding state",
		})
	}

	return ctx.JSON(fiber.Map{
		"steps":    state,
		"required": required,
	})
}

// OnboardingMarkAction records that the user saw a step.
func OnboardingMarkAction(ctx *cartridge.Context) error {
	user := onboardingUser(ctx)
	if user == "" {
		return badRequest(ctx, codeInvalidQuery, "user_id is required")
	}

	var req OnboardingFlagRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return badRequest(ctx, codeInvalidQuery, "Invalid request format")
		}
	}

	step := onboarding.Step(ctx.Params("step"))
	err := onboarding.MarkShown(ctx.DB(), siteID(ctx), user, step, onboarding.FlagData{
		Dismissed: req.Dismissed,
		Variant:   req.Variant,
	})
	if errors.Is(err, onboarding.ErrUnknownStep) {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
			"code":  codeNotFound,
		})
	}
	if err != nil {
		ctx.Logger.Error("Failed to mark onboarding step", slog.String("step", string(step)), slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save onboarding step",
		})
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// OnboardingResetAction forgets the user's flags on the site.
func OnboardingResetAction(ctx *cartridge.Context) error {
	user := onboardingUser(ctx)
	if user == "" {
		return badRequest(ctx, codeInvalidQuery, "user_id is required")
	}
	if err := onboarding.Reset(ctx.DB(), siteID(ctx), user); err != nil {
		ctx.Logger.Error("Failed to reset onboarding", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset onboarding",
		})
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
