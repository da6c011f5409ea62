// Package api wires the Store, IndexGateway, and Supervisor behind
// the REST surface external callers use: site configuration, ad-hoc
// crawl submission, task inspection, and search.
package api

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/crawlstack/sitecrawl/internal/index"
	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/internal/store"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

// crawlStarter is the Supervisor surface the API depends on.
type crawlStarter interface {
	StartAdHoc(ctx context.Context, startURL string, maxDepth, maxPages int, sameDomainOnly bool, domainRestriction, siteID string) (model.Task, error)
	StartForSite(ctx context.Context, site model.Site) (model.Task, error)
}

// Defaults carries the process-wide fallback values new sites and
// ad-hoc crawls apply when a request omits them.
type Defaults struct {
	MaxDepth       int
	MaxPages       int
	SameDomainOnly bool
	FrequencyMin   int
}

type handlers struct {
	store    store.Store
	index    index.Gateway
	sup      crawlStarter
	defaults Defaults
	log      zerolog.Logger
}

// New builds a Fiber app with every route spec §6 names, plus the
// shared middleware stack (panic recovery, structured request
// logging, permissive CORS, and bearer auth when a token is set).
func New(st store.Store, idx index.Gateway, sup crawlStarter, defaults Defaults, bearerToken string, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "sitecrawl",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	h := &handlers{store: st, index: idx, sup: sup, defaults: defaults, log: log}

	app.Get("/health", h.health)

	app.Use(bearerAuth(bearerToken))

	app.Get("/sites", h.listSites)
	app.Post("/sites", h.createSite)
	app.Put("/sites/:id", h.updateSite)
	app.Delete("/sites/:id", h.deleteSite)
	app.Post("/sites/:id/crawl", h.crawlSite)

	app.Post("/crawl", h.adHocCrawl)
	app.Get("/crawl/tasks", h.listTasks)
	app.Get("/crawl/:task_id", h.getTask)

	app.Post("/search", h.search)

	return app
}

// bearerAuth is a no-op when token is empty, per spec §6: "if unset,
// all endpoints are open (dev mode)".
func bearerAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		header := c.Get("Authorization")
		if header != "Bearer "+token {
			return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid bearer token")
		}
		return c.Next()
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	var classified failure.ClassifiedError
	if errors.As(err, &classified) {
		return c.Status(statusForKind(classified)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func statusForKind(err failure.ClassifiedError) int {
	fe, ok := err.(*failure.Error)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch fe.Kind {
	case failure.KindValidation, failure.KindConflict:
		return fiber.StatusBadRequest
	case failure.KindNotFound:
		return fiber.StatusNotFound
	case failure.KindIndexUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func parsePage(c *fiber.Ctx) (page, pageSize int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err = strconv.Atoi(c.Query("page_size", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}

func trimmedOrEmpty(s string) string {
	return strings.TrimSpace(s)
}
