package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crawlstack/sitecrawl/internal/store"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

type adHocCrawlRequest struct {
	URL               string `json:"url"`
	MaxDepth          *int   `json:"max_depth"`
	MaxPages          *int   `json:"max_pages"`
	SameDomainOnly    *bool  `json:"same_domain_only"`
	DomainRestriction string `json:"domain_restriction"`
	SiteID            string `json:"site_id"`
}

func (h *handlers) adHocCrawl(c *fiber.Ctx) error {
	var req adHocCrawlRequest
	if err := c.BodyParser(&req); err != nil {
		return failure.Validation("invalid request body: " + err.Error())
	}

	req.URL = trimmedOrEmpty(req.URL)
	if req.URL == "" {
		return failure.Validation("url is required")
	}
	if err := validateAbsoluteHTTPURL(req.URL, "url"); err != nil {
		return err
	}

	maxDepth := intOrDefault(req.MaxDepth, h.defaults.MaxDepth)
	maxPages := intOrDefault(req.MaxPages, h.defaults.MaxPages)
	if err := validatePageBounds(maxDepth, maxPages); err != nil {
		return err
	}

	task, err := h.sup.StartAdHoc(
		c.Context(),
		req.URL,
		maxDepth,
		maxPages,
		boolOrDefault(req.SameDomainOnly, h.defaults.SameDomainOnly),
		trimmedOrEmpty(req.DomainRestriction),
		trimmedOrEmpty(req.SiteID),
	)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": task.ID, "status": task.Status})
}

func (h *handlers) listTasks(c *fiber.Ctx) error {
	page, pageSize := parsePage(c)

	var filter store.TaskFilter
	if siteID := c.Query("site_id"); siteID != "" {
		filter.SiteID = &siteID
	}

	tasks, total, err := h.store.ListTasks(c.Context(), filter, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"items":     tasks,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *handlers) getTask(c *fiber.Ctx) error {
	task, err := h.store.GetTask(c.Context(), c.Params("task_id"))
	if err != nil {
		return err
	}
	return c.JSON(task)
}
