package api

import (
	"github.com/gofiber/fiber/v2"

	"docquery/app/agent"
	"docquery/types"
)

// QueryHandler exposes the query system's operations over HTTP. It is a
// thin layer: all retrieval and response logic lives in the agent.
type QueryHandler struct {
	system *agent.System
}

func NewQueryHandler(system *agent.System) *QueryHandler {
	return &QueryHandler{
		system: system,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	resp := h.system.Query(c.Context(), params.Query, params.TopK, params.Threshold)
	return c.JSON(resp)
}

func (h *QueryHandler) HandleBatchQuery(c *fiber.Ctx) error {
	var params types.BatchQueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	responses := h.system.BatchQuery(c.Context(), params.Queries)
	return c.JSON(responses)
}

func (h *QueryHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.system.Stats(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (h *QueryHandler) HandleSave(c *fiber.Ctx) error {
	var params types.SnapshotParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	if err := h.system.Save(c.Context(), params.Path); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"saved": params.Path})
}

func (h *QueryHandler) HandleLoad(c *fiber.Ctx) error {
	var params types.SnapshotParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return types.NewValidationError(errors)
	}

	if err := h.system.Load(c.Context(), params.Path); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"loaded": params.Path})
}
