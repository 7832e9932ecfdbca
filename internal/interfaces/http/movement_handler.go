package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/jwt"
)

// MovementHandler ciclo de vida de movimientos: alta, reserva y cierre (protegido).
type MovementHandler struct {
	engine *inventory.ReservationEngine
}

// NewMovementHandler construye el handler.
func NewMovementHandler(engine *inventory.ReservationEngine) *MovementHandler {
	return &MovementHandler{engine: engine}
}

// Create godoc
// @Summary      Crear movimiento (borrador o confirmado)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateMovementRequest  true  "producto, cantidad, origen y destino"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *MovementHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	input := inventory.CreateMovementInput{
		CompanyID:         GetCompanyID(c),
		UserID:            GetUserID(c),
		ProductID:         in.ProductID,
		UoMID:             in.UoMID,
		Quantity:          in.Quantity,
		SourceLocationID:  in.SourceLocationID,
		DestLocationID:    in.DestLocationID,
		LotID:             in.LotID,
		PackageID:         in.PackageID,
		OwnerID:           in.OwnerID,
		PriceUnit:         in.PriceUnit,
		OriginMovementIDs: in.OriginMovementIDs,
		ReconcilesQuantID: in.ReconcilesQuantID,
		Reference:         in.Reference,
	}
	if in.Date != nil {
		input.Date = *in.Date
	}
	m, err := h.engine.Create(c.UserContext(), input)
	if err != nil {
		return writeError(c, err)
	}
	if in.Confirm {
		if m, err = h.engine.Confirm(c.UserContext(), input.CompanyID, m.ID); err != nil {
			return writeError(c, err)
		}
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewMovementResponse(m))
}

// Get godoc
// @Summary      Obtener movimiento con sus reservas
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/movements/{id} [get]
func (h *MovementHandler) Get(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	m, err := h.engine.Get(c.UserContext(), companyID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	links, err := h.engine.Links(c.UserContext(), companyID, m.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"movement": dto.NewMovementResponse(m),
		"links":    dto.NewLinkResponses(links),
	})
}

// Confirm godoc
// @Summary      Confirmar movimiento
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/movements/{id}/confirm [post]
func (h *MovementHandler) Confirm(c *fiber.Ctx) error {
	return h.transition(c, h.engine.Confirm)
}

// Reserve godoc
// @Summary      Reservar existencias para el movimiento
// @Description  Idempotente: reservar dos veces no duplica vínculos.
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.AssignmentResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/movements/{id}/reserve [post]
func (h *MovementHandler) Reserve(c *fiber.Ctx) error {
	res, err := h.engine.Reserve(c.UserContext(), GetCompanyID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	links := make([]dto.ReservationLinkResponse, 0, len(res.Links))
	for _, l := range res.Links {
		links = append(links, dto.ReservationLinkResponse{QuantID: l.QuantID, Quantity: l.Quantity})
	}
	return c.JSON(dto.AssignmentResponse{
		MovementID: res.MovementID,
		Status:     res.Status,
		Reserved:   res.Reserved,
		Remaining:  res.Remaining,
		Links:      links,
	})
}

// ForceAssign godoc
// @Summary      Forzar disponibilidad sin reservar quants
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Router       /api/movements/{id}/force-assign [post]
func (h *MovementHandler) ForceAssign(c *fiber.Ctx) error {
	return h.transition(c, h.engine.ForceAssign)
}

// Unreserve godoc
// @Summary      Liberar reservas del movimiento
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Router       /api/movements/{id}/unreserve [post]
func (h *MovementHandler) Unreserve(c *fiber.Ctx) error {
	return h.transition(c, h.engine.Unreserve)
}

// Cancel godoc
// @Summary      Cancelar movimiento
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/movements/{id}/cancel [post]
func (h *MovementHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.engine.Cancel)
}

// Complete godoc
// @Summary      Completar movimiento
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                       true   "ID del movimiento"
// @Param        body  body  dto.CompleteMovementRequest  false  "cantidad hecha y lotes"
// @Success      200   {object}  dto.CompletionResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/movements/{id}/complete [post]
func (h *MovementHandler) Complete(c *fiber.Ctx) error {
	var in dto.CompleteMovementRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	// Saltarse la política de negativos es lo mismo que forzar la asignación: solo admin.
	if in.AllowNegative && GetRole(c) != jwt.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "allow_negative requiere rol admin"})
	}
	req := inventory.CompleteRequest{
		CompanyID:       GetCompanyID(c),
		MovementID:      c.Params("id"),
		UserID:          GetUserID(c),
		QuantityDone:    in.QuantityDone,
		AllowNegative:   in.AllowNegative,
		CreateBackorder: in.CreateBackorder,
	}
	for _, la := range in.LotAssignments {
		req.LotAssignments = append(req.LotAssignments, inventory.LotAssignment{
			LotID: la.LotID, Quantity: la.Quantity, ExpirationDate: la.ExpirationDate,
		})
	}
	res, err := h.engine.Complete(c.UserContext(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.CompletionResponse{
		Movement:         dto.NewMovementResponse(res.Movement),
		Consumed:         quantMoves(res.Consumed),
		Produced:         quantMoves(res.Produced),
		NegativeQuantIDs: res.NegativeQuantIDs,
		PriceUnit:        res.PriceUnit,
		Backorder:        dto.NewMovementResponse(res.Backorder),
		Reconciliation:   reconcileResponse(res.Reconciliation),
	})
}

// transition aplica un cambio de estado sin cuerpo y responde el movimiento resultante.
func (h *MovementHandler) transition(c *fiber.Ctx, fn func(ctx context.Context, companyID, movementID string) (*entity.Movement, error)) error {
	m, err := fn(c.UserContext(), GetCompanyID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewMovementResponse(m))
}

func quantMoves(moves []inventory.QuantMove) []dto.QuantMoveResponse {
	out := make([]dto.QuantMoveResponse, 0, len(moves))
	for _, m := range moves {
		out = append(out, dto.QuantMoveResponse{
			QuantID: m.QuantID, LocationID: m.LocationID, LotID: m.LotID, Quantity: m.Quantity, Cost: m.Cost,
		})
	}
	return out
}
