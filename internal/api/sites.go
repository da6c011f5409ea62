package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/internal/store"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

type siteCreateRequest struct {
	Domain                string `json:"domain"`
	Name                  string `json:"name"`
	StartURL              string `json:"start_url"`
	MaxDepth              *int   `json:"max_depth"`
	MaxPages              *int   `json:"max_pages"`
	SameDomainOnly        *bool  `json:"same_domain_only"`
	CrawlFrequencyMinutes *int   `json:"crawl_frequency_minutes"`
	Enabled               *bool  `json:"enabled"`
}

func (h *handlers) listSites(c *fiber.Ctx) error {
	sites, err := h.store.ListSites(c.Context(), store.SiteFilter{})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": sites})
}

func (h *handlers) createSite(c *fiber.Ctx) error {
	var req siteCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return failure.Validation("invalid request body: " + err.Error())
	}

	req.Domain = normalizeDomain(req.Domain)
	req.StartURL = trimmedOrEmpty(req.StartURL)
	if req.Domain == "" {
		return failure.Validation("domain is required")
	}
	if req.StartURL == "" {
		return failure.Validation("start_url is required")
	}
	if err := validateAbsoluteHTTPURL(req.StartURL, "start_url"); err != nil {
		return err
	}

	maxDepth := intOrDefault(req.MaxDepth, h.defaults.MaxDepth)
	maxPages := intOrDefault(req.MaxPages, h.defaults.MaxPages)
	if err := validatePageBounds(maxDepth, maxPages); err != nil {
		return err
	}

	name := req.Name
	if name == "" {
		name = req.Domain
	}

	now := time.Now().UTC()
	site := model.Site{
		ID:                    uuid.NewString(),
		Domain:                req.Domain,
		Name:                  name,
		StartURL:              req.StartURL,
		MaxDepth:              maxDepth,
		MaxPages:              maxPages,
		SameDomainOnly:        boolOrDefault(req.SameDomainOnly, h.defaults.SameDomainOnly),
		CrawlFrequencyMinutes: intOrDefault(req.CrawlFrequencyMinutes, h.defaults.FrequencyMin),
		Enabled:               boolOrDefault(req.Enabled, true),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	created, err := h.store.CreateSite(c.Context(), site)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *handlers) updateSite(c *fiber.Ctx) error {
	id := c.Params("id")
	var patch model.SitePatch
	if err := c.BodyParser(&patch); err != nil {
		return failure.Validation("invalid request body: " + err.Error())
	}

	if patch.StartURL != nil {
		trimmed := trimmedOrEmpty(*patch.StartURL)
		if trimmed == "" {
			return failure.Validation("start_url cannot be empty")
		}
		if err := validateAbsoluteHTTPURL(trimmed, "start_url"); err != nil {
			return err
		}
		patch.StartURL = &trimmed
	}
	if patch.MaxDepth != nil && *patch.MaxDepth < 0 {
		return failure.Validation("max_depth must be >= 0")
	}
	if patch.MaxPages != nil && *patch.MaxPages < 1 {
		return failure.Validation("max_pages must be >= 1")
	}

	updated, err := h.store.UpdateSite(c.Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(updated)
}

func (h *handlers) deleteSite(c *fiber.Ctx) error {
	id := c.Params("id")

	site, err := h.store.GetSite(c.Context(), id)
	if err != nil {
		return err
	}

	if err := h.store.DeleteSite(c.Context(), id); err != nil {
		return err
	}

	// Best-effort per spec §6 and §8 invariant 7: a failure is logged and
	// not retried; the site deletion still succeeds.
	if err := h.index.DeleteByDomain(c.Context(), site.Domain); err != nil {
		h.log.Warn().Err(err).Str("domain", site.Domain).Msg("delete_by_domain failed after site delete")
	}

	return c.JSON(fiber.Map{"success": true, "message": "site deleted"})
}

func (h *handlers) crawlSite(c *fiber.Ctx) error {
	id := c.Params("id")
	site, err := h.store.GetSite(c.Context(), id)
	if err != nil {
		return err
	}

	task, err := h.sup.StartForSite(c.Context(), site)
	if err != nil {
		return err
	}
	if task.ID == "" {
		return failure.Conflict("a crawl for this site is already running")
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": task.ID, "status": task.Status})
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
