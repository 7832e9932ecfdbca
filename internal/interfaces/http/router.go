package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine    *inventory.Engine
	Locations *usecase.LocationUseCase
	JWTSecret string
	JWTIssuer string
}

// Router registra las rutas de la API. Todas requieren Bearer Token; las escrituras
// exigen rol admin o bodeguero y forzar disponibilidad solo admin.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero, jwt.RoleAuditor)
	writer := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero)
	adminOnly := RequireRole(jwt.RoleAdmin)

	// Ubicaciones
	locations := api.Group("/locations")
	locationHandler := NewLocationHandler(deps.Locations)
	locations.Post("/", adminOnly, locationHandler.Create)
	locations.Get("/:id", anyRole, locationHandler.GetByID)

	// Movimientos
	movements := api.Group("/movements")
	movementHandler := NewMovementHandler(deps.Engine.Reservations)
	movements.Post("/", writer, movementHandler.Create)
	movements.Get("/:id", anyRole, movementHandler.Get)
	movements.Post("/:id/confirm", writer, movementHandler.Confirm)
	movements.Post("/:id/reserve", writer, movementHandler.Reserve)
	movements.Post("/:id/force-assign", adminOnly, movementHandler.ForceAssign)
	movements.Post("/:id/unreserve", writer, movementHandler.Unreserve)
	movements.Post("/:id/cancel", writer, movementHandler.Cancel)
	movements.Post("/:id/complete", writer, movementHandler.Complete)

	// Quants
	quants := api.Group("/quants")
	quantHandler := NewQuantHandler(deps.Engine.Quants, deps.Engine.Reconciler)
	quants.Get("/quantity", anyRole, quantHandler.Quantity)
	quants.Get("/", anyRole, quantHandler.List)
	quants.Post("/reconcile", writer, quantHandler.Reconcile)

	// Valorización
	valuation := api.Group("/valuation")
	valuationHandler := NewValuationHandler(deps.Engine.Valuation)
	valuation.Get("/", anyRole, valuationHandler.Report)
	valuation.Get("/cost/:product_id", anyRole, valuationHandler.GetCost)
	valuation.Put("/cost/:product_id", adminOnly, valuationHandler.SetStandardCost)

	// Ajustes por conteo físico
	adjustments := api.Group("/adjustments")
	adjustmentHandler := NewAdjustmentHandler(deps.Engine.Adjustments)
	adjustments.Get("/theoretical", anyRole, adjustmentHandler.Theoretical)
	adjustments.Post("/", writer, adjustmentHandler.Apply)
	adjustments.Get("/:id", anyRole, adjustmentHandler.Get)
}
