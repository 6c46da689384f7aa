package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"rankrent/internal/sites"
)

// SiteScope resolves the :site_id route parameter and stores the id in
// c.Locals("site_id") as a uint. Unknown sites get a 404.
func SiteScope(directory *sites.Directory, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("site_id")
		if err != nil || id <= 0 {
			logger.Debug("Invalid site_id provided", slog.String("site_id", c.Params("site_id")))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid site_id",
				"code":  "INVALID_QUERY",
			})
		}

		site, err := directory.Get(uint(id))
		if err != nil {
			var notFound *sites.SiteNotFoundError
			if errors.As(err, &notFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Site not found",
					"code":  "SITE_NOT_FOUND",
				})
			}
			logger.Error("Failed to resolve site", slog.Int("site_id", id), slog.Any("error", err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Analytics temporarily unavailable",
				"code":  "ANALYTICS_UNAVAILABLE",
			})
		}

		c.Locals("site_id", site.ID)
		return c.Next()
	}
}
