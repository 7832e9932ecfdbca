package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

// ValuationHandler costos y valorización del inventario (protegido).
type ValuationHandler struct {
	valuation *inventory.ValuationEngine
}

// NewValuationHandler construye el handler.
func NewValuationHandler(valuation *inventory.ValuationEngine) *ValuationHandler {
	return &ValuationHandler{valuation: valuation}
}

// GetCost godoc
// @Summary      Costo vigente del producto
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        product_id  path  string  true  "ID del producto"
// @Success      200  {object}  dto.CostResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/valuation/cost/{product_id} [get]
func (h *ValuationHandler) GetCost(c *fiber.Ctx) error {
	productID := c.Params("product_id")
	cost, err := h.valuation.CurrentCost(c.UserContext(), GetCompanyID(c), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.CostResponse{ProductID: productID, Cost: cost})
}

// SetStandardCost godoc
// @Summary      Fijar costo estándar
// @Tags         valuation
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        product_id  path  string                      true  "ID del producto"
// @Param        body        body  dto.SetStandardCostRequest  true  "costo"
// @Success      200  {object}  dto.CostResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/valuation/cost/{product_id} [put]
func (h *ValuationHandler) SetStandardCost(c *fiber.Ctx) error {
	var in dto.SetStandardCostRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	productID := c.Params("product_id")
	companyID := GetCompanyID(c)
	if err := h.valuation.SetStandardCost(c.UserContext(), companyID, productID, in.Cost); err != nil {
		return writeError(c, err)
	}
	cost, err := h.valuation.CurrentCost(c.UserContext(), companyID, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.CostResponse{ProductID: productID, Cost: cost})
}

// Report godoc
// @Summary      Valorización del inventario en el subárbol de una ubicación
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        location_id  query  string  true  "ID de la ubicación"
// @Success      200  {object}  dto.ValuationResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/valuation [get]
func (h *ValuationHandler) Report(c *fiber.Ctx) error {
	locationID := c.Query("location_id")
	lines, err := h.valuation.Valuation(c.UserContext(), GetCompanyID(c), locationID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewValuationResponse(locationID, lines))
}
