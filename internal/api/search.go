package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crawlstack/sitecrawl/internal/index"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

type searchRequest struct {
	Query    string `json:"query"`
	Domain   string `json:"domain"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

func (h *handlers) search(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return failure.Validation("invalid request body: " + err.Error())
	}

	req.Query = trimmedOrEmpty(req.Query)
	if req.Query == "" {
		return failure.Validation("query is required")
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 20
	}

	resp, err := h.index.Search(c.Context(), index.SearchRequest{
		Query:    req.Query,
		Domain:   req.Domain,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return err
	}

	return c.JSON(resp)
}

func (h *handlers) health(c *fiber.Ctx) error {
	stats, err := h.index.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":      "ok",
		"meilisearch": stats,
	})
}
