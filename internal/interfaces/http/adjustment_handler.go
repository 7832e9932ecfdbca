package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

// AdjustmentHandler conteos físicos y ajustes de inventario (protegido).
type AdjustmentHandler struct {
	adjustments *inventory.AdjustmentReconciler
}

// NewAdjustmentHandler construye el handler.
func NewAdjustmentHandler(adjustments *inventory.AdjustmentReconciler) *AdjustmentHandler {
	return &AdjustmentHandler{adjustments: adjustments}
}

// Theoretical godoc
// @Summary      Cantidades registradas por clave (para la hoja de conteo)
// @Tags         adjustments
// @Security     Bearer
// @Produce      json
// @Param        location_id  query  string  true   "ID de la ubicación"
// @Param        product_id   query  string  false  "ID del producto"
// @Success      200  {array}   dto.TheoreticalLineResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/adjustments/theoretical [get]
func (h *AdjustmentHandler) Theoretical(c *fiber.Ctx) error {
	var q dto.FiltersQuery
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	companyID := GetCompanyID(c)
	lines, err := h.adjustments.ComputeTheoretical(c.UserContext(), companyID, c.Query("location_id"), c.Query("product_id"), filtersFromQuery(q, companyID))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.TheoreticalLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, dto.NewTheoreticalLine(l.Key, l.Quantity))
	}
	return c.JSON(out)
}

// Apply godoc
// @Summary      Aplicar un conteo físico
// @Description  Genera un movimiento por cada diferencia entre lo contado y lo registrado.
// @Tags         adjustments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ApplyCountRequest  true  "líneas contadas"
// @Success      201   {object}  dto.AdjustmentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/adjustments [post]
func (h *AdjustmentHandler) Apply(c *fiber.Ctx) error {
	var in dto.ApplyCountRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	companyID := GetCompanyID(c)
	req := inventory.ApplyCountRequest{
		CompanyID:      companyID,
		UserID:         GetUserID(c),
		LossLocationID: in.LossLocationID,
		Lines:          make([]inventory.CountedLine, 0, len(in.Lines)),
	}
	if in.Date != nil {
		req.Date = *in.Date
	}
	for _, l := range in.Lines {
		req.Lines = append(req.Lines, inventory.CountedLine{Key: l.QuantKeyDTO.ToEntity(companyID), Counted: l.Counted})
	}
	adj, err := h.adjustments.ApplyCount(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewAdjustmentResponse(adj))
}

// Get godoc
// @Summary      Obtener ajuste
// @Tags         adjustments
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del ajuste"
// @Success      200  {object}  dto.AdjustmentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/adjustments/{id} [get]
func (h *AdjustmentHandler) Get(c *fiber.Ctx) error {
	adj, err := h.adjustments.Get(c.UserContext(), GetCompanyID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewAdjustmentResponse(adj))
}
