package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

// QuantHandler consultas de existencias y conciliación de negativos (protegido).
type QuantHandler struct {
	store      *inventory.QuantStore
	reconciler *inventory.NegativeReconciler
}

// NewQuantHandler construye el handler.
func NewQuantHandler(store *inventory.QuantStore, reconciler *inventory.NegativeReconciler) *QuantHandler {
	return &QuantHandler{store: store, reconciler: reconciler}
}

// Quantity godoc
// @Summary      Cantidad en mano de un producto en el subárbol de una ubicación
// @Tags         quants
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  true   "ID del producto"
// @Param        location_id  query  string  true   "ID de la ubicación"
// @Param        lot_id       query  string  false  "lote"
// @Param        without_lot  query  bool    false  "solo quants sin lote"
// @Success      200  {object}  dto.QuantityResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/quants/quantity [get]
func (h *QuantHandler) Quantity(c *fiber.Ctx) error {
	productID, locationID, filters, err := h.parseQuery(c)
	if err != nil {
		return badBody(c)
	}
	qty, err := h.store.QuantityAt(c.UserContext(), productID, locationID, filters)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.QuantityResponse{ProductID: productID, LocationID: locationID, Quantity: qty})
}

// List godoc
// @Summary      Listar quants de un producto en el subárbol de una ubicación
// @Tags         quants
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  true  "ID del producto"
// @Param        location_id  query  string  true  "ID de la ubicación"
// @Success      200  {array}   dto.QuantResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/quants [get]
func (h *QuantHandler) List(c *fiber.Ctx) error {
	productID, locationID, filters, err := h.parseQuery(c)
	if err != nil {
		return badBody(c)
	}
	list, err := h.store.ListQuants(c.UserContext(), productID, locationID, filters)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewQuantResponses(list))
}

// Reconcile godoc
// @Summary      Conciliar quants negativos
// @Description  Sin product_id concilia todos los productos con negativos en el subárbol.
// @Tags         quants
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReconcileRequest  true  "ubicación y producto opcional"
// @Success      200   {array}   dto.ReconcileResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/quants/reconcile [post]
func (h *QuantHandler) Reconcile(c *fiber.Ctx) error {
	var in dto.ReconcileRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	companyID := GetCompanyID(c)
	var reports []*inventory.ReconcileReport
	if in.ProductID != "" {
		r, err := h.reconciler.Reconcile(c.UserContext(), companyID, in.LocationID, in.ProductID)
		if err != nil {
			return writeError(c, err)
		}
		reports = append(reports, r)
	} else {
		var err error
		if reports, err = h.reconciler.ReconcileLocation(c.UserContext(), companyID, in.LocationID); err != nil {
			return writeError(c, err)
		}
	}
	out := make([]*dto.ReconcileResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, reconcileResponse(r))
	}
	return c.JSON(out)
}

func (h *QuantHandler) parseQuery(c *fiber.Ctx) (productID, locationID string, filters inventory.Filters, err error) {
	var q dto.FiltersQuery
	if err = c.QueryParser(&q); err != nil {
		return "", "", filters, err
	}
	return c.Query("product_id"), c.Query("location_id"), filtersFromQuery(q, GetCompanyID(c)), nil
}
