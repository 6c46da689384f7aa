package middleware

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"rankrent/internal/onboarding"
)

// OnboardingHint sets X-Onboarding-Required on responses for identified users
// (X-User-ID) who still have unseen onboarding steps on the site. It must run
// after SiteScope and never blocks the request.
func OnboardingHint(db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := c.Get("X-User-ID")
		siteID, ok := c.Locals("site_id").(uint)
		if user == "" || !ok {
			return c.Next()
		}

		required, err := onboarding.IsRequired(db, siteID, user)
		if err != nil {
			logger.Warn("Failed to check onboarding state", slog.Any("error", err))
			return c.Next()
		}
		c.Set("X-Onboarding-Required", strconv.FormatBool(required))
		return c.Next()
	}
}
