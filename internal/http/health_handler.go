package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"rankrent/internal/tracking"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	DBStatus    string     `json:"db_status"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
}

// HealthIndexAction reports database reachability and ingestion freshness.
func HealthIndexAction(ctx *cartridge.Context) error {
	health := HealthStatus{Status: "ok", Timestamp: time.Now().UTC(), DBStatus: "ok"}

	db := ctx.DBManager.GetConnection()
	if db == nil {
		health.DBStatus = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else if sqlDB, err := db.DB(); err != nil {
		health.DBStatus = "error"
		ctx.Logger.Error("Database connection error", slog.Any("error", err))
	} else if err := sqlDB.PingContext(ctx.UserContext()); err != nil {
		health.DBStatus = "error"
		ctx.Logger.Error("Database ping failed", slog.Any("error", err))
	} else {
		var last tracking.TrackingEvent
		if err := db.Select("occurred_at").Order("id DESC").Limit(1).Find(&last).Error; err == nil && !last.OccurredAt.IsZero() {
			at := last.OccurredAt.UTC()
			health.LastEventAt = &at
		}
	}

	if health.DBStatus != "ok" {
		health.Status = "degraded"
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(health)
	}
	return ctx.JSON(health)
}
