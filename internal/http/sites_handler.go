package http

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"rankrent/internal/sites"
)

type SiteRequest struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// SitesIndexAction lists the registered sites.
func SitesIndexAction(ctx *cartridge.Context) error {
	list, err := sites.ListSites(ctx.DB())
	if err != nil {
		return respondError(ctx, engineUnavailable(err))
	}
	return ctx.JSON(fiber.Map{"sites": list})
}

// SiteCreateAction registers a domain. Events are only accepted from registered domains.
func SiteCreateAction(ctx *cartridge.Context) error {
	var req SiteRequest
	if err := ctx.BodyParser(&req); err != nil || strings.TrimSpace(req.Domain) == "" {
		return badRequest(ctx, codeInvalidQuery, "domain is required")
	}

	if existing, err := sites.GetSiteByDomain(ctx.DB(), req.Domain); err == nil {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Site already registered",
			"site":  existing,
		})
	}

	site := sites.Site{Domain: req.Domain, Name: strings.TrimSpace(req.Name)}
	if site.Name == "" {
		site.Name = sites.BaseDomainForHost(req.Domain)
	}
	if err := sites.CreateSite(ctx.DB(), &site); err != nil {
		ctx.Logger.Error("Failed to create site", slog.String("domain", req.Domain), slog.Any("error", err))
		return respondError(ctx, err)
	}
	ctx.Logger.Info("Site registered", slog.Uint64("site_id", uint64(site.ID)), slog.String("domain", site.Domain))
	return ctx.Status(fiber.StatusCreated).JSON(site)
}
