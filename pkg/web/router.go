package web

import "github.com/gofiber/fiber/v3"

// Router mounts every API route on the app. Kept separate from app
// construction so tests can mount the same routes on a bare fiber app.
func Router(app *fiber.App, handlers *APIHandlers) {
	app.Post("/webhook/:providerKind/:companyId", handlers.HandleWebhook)

	p := app.Group("/providers")
	p.Post("/", handlers.CreateProvider)
	p.Post("/:id/activate", handlers.ActivateProvider)
	p.Post("/:id/deactivate", handlers.DeactivateProvider)
	p.Post("/:id/default", handlers.SetDefaultProvider)
	p.Post("/:id/migrate", handlers.MigrateProvider)

	f := app.Group("/flows")
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Post("/:id/publish", handlers.PublishFlow)

	e := app.Group("/executions")
	e.Post("/", handlers.StartExecution)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/stop", handlers.StopExecution)

	co := app.Group("/companies/:companyId")
	co.Get("/providers", handlers.GetProviders)
	co.Get("/flows", handlers.GetFlows)
	co.Get("/executions", handlers.GetExecutions)
	co.Get("/connections", handlers.GetConnections)

	app.Post("/messages", handlers.SendMessage)
	app.Get("/health", handlers.HealthCheck)
}
