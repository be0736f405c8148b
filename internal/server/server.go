// Package server exposes the accumulated tracking state to host
// platforms over HTTP, mirroring the snapshot shape field for field.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nhle/mailtrack/internal/model"
	"github.com/nhle/mailtrack/internal/sync"
)

// StateProvider is the read side of the poller the API serves from.
type StateProvider interface {
	State() model.MailState
	Status() sync.Status
	Trigger()
}

// New builds the fiber app. contentDir, when non-empty, is served under
// publicBase so mail_images URLs resolve.
func New(provider StateProvider, contentDir, publicBase string, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "mailtrack",
		DisableStartupMessage: true,
	})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("took", time.Since(start)).
			Msg("request")
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/api/state", func(c *fiber.Ctx) error {
		return c.JSON(provider.State())
	})

	app.Get("/api/state/usps", func(c *fiber.Ctx) error {
		return c.JSON(provider.State().Usps)
	})

	app.Get("/api/state/amazon", func(c *fiber.Ctx) error {
		return c.JSON(provider.State().Amazon)
	})

	app.Get("/api/status", func(c *fiber.Ctx) error {
		return c.JSON(provider.Status())
	})

	app.Post("/api/poll", func(c *fiber.Ctx) error {
		provider.Trigger()
		return c.SendStatus(fiber.StatusAccepted)
	})

	if contentDir != "" && publicBase != "" {
		app.Static(publicBase, contentDir)
	}

	return app
}
