package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	invdomain "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// Estados del resultado de una reserva.
const (
	AssignmentAssigned = "assigned"
	AssignmentPartial  = "partial"
	AssignmentNone     = "none"
)

// ReservationEngine administra el ciclo de vida de los movimientos: reserva, liberación,
// cancelación y cumplimiento. Cada operación pública es una transacción.
type ReservationEngine struct {
	tx         TxRunner
	catalog    repository.ProductCatalog
	store      *QuantStore
	selector   *Selector
	valuation  *ValuationEngine
	reconciler *NegativeReconciler
	opts       Options
}

// NewReservationEngine construye el motor de reservas.
func NewReservationEngine(
	tx TxRunner,
	catalog repository.ProductCatalog,
	store *QuantStore,
	selector *Selector,
	valuation *ValuationEngine,
	reconciler *NegativeReconciler,
	opts Options,
) *ReservationEngine {
	return &ReservationEngine{
		tx:         tx,
		catalog:    catalog,
		store:      store,
		selector:   selector,
		valuation:  valuation,
		reconciler: reconciler,
		opts:       opts.normalized(),
	}
}

// CreateMovementInput entrada para crear un movimiento. Quantity en UoMID (vacío = unidad del producto).
type CreateMovementInput struct {
	CompanyID         string
	UserID            string
	ProductID         string
	UoMID             string
	Quantity          decimal.Decimal
	SourceLocationID  string
	DestLocationID    string
	LotID             string
	PackageID         string
	OwnerID           string
	Strict            bool
	PriceUnit         decimal.Decimal
	OriginMovementIDs []string
	ReconcilesQuantID string
	Reference         string
	Date              time.Time
}

// AssignmentResult resultado de Reserve. Links son todos los vínculos vigentes del movimiento.
type AssignmentResult struct {
	MovementID string
	Status     string
	Reserved   decimal.Decimal
	Remaining  decimal.Decimal
	Links      []entity.ReservationLink
}

// LotAssignment cantidad hecha (unidad del producto) de un lote concreto.
type LotAssignment struct {
	LotID          string
	Quantity       decimal.Decimal
	ExpirationDate *time.Time
}

// CompleteRequest entrada de Complete. QuantityDone en la unidad del movimiento; cero = todo.
type CompleteRequest struct {
	CompanyID       string
	MovementID      string
	UserID          string
	QuantityDone    decimal.Decimal
	LotAssignments  []LotAssignment
	AllowNegative   bool
	CreateBackorder bool
}

// QuantMove cantidad retirada o depositada en un quant.
type QuantMove struct {
	QuantID    string
	LocationID string
	LotID      string
	PackageID  string
	OwnerID    string
	Quantity   decimal.Decimal
	Cost       decimal.Decimal
}

// CompletionResult quants consumidos/producidos para la valorización y la contabilidad.
type CompletionResult struct {
	Movement         *entity.Movement
	Consumed         []QuantMove
	Produced         []QuantMove
	NegativeQuantIDs []string
	PriceUnit        decimal.Decimal
	Backorder        *entity.Movement
	Reconciliation   *ReconcileReport
}

// Create registra un movimiento en borrador.
func (e *ReservationEngine) Create(ctx context.Context, in CreateMovementInput) (*entity.Movement, error) {
	var m *entity.Movement
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		m, err = e.createTx(ctx, repos, in)
		return err
	})
	return m, err
}

// Get devuelve el movimiento de la empresa.
func (e *ReservationEngine) Get(ctx context.Context, companyID, movementID string) (*entity.Movement, error) {
	var m *entity.Movement
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		found, err := repos.Movements.GetByID(ctx, movementID)
		if err != nil {
			return err
		}
		if found == nil || found.CompanyID != companyID {
			return fmt.Errorf("movimiento %s: %w", movementID, domain.ErrNotFound)
		}
		m = found
		return nil
	})
	return m, err
}

// Links vínculos de reserva vigentes del movimiento.
func (e *ReservationEngine) Links(ctx context.Context, companyID, movementID string) ([]*entity.ReservationLink, error) {
	var out []*entity.ReservationLink
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		m, err := repos.Movements.GetByID(ctx, movementID)
		if err != nil {
			return err
		}
		if m == nil || m.CompanyID != companyID {
			return fmt.Errorf("movimiento %s: %w", movementID, domain.ErrNotFound)
		}
		out, err = repos.Reservations.ListByMovement(ctx, movementID)
		return err
	})
	return out, err
}

// Confirm pasa un borrador a confirmado.
func (e *ReservationEngine) Confirm(ctx context.Context, companyID, movementID string) (*entity.Movement, error) {
	var m *entity.Movement
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		m, err = e.confirmTx(ctx, repos, companyID, movementID)
		return err
	})
	return m, err
}

// Reserve reserva la cantidad pendiente del movimiento. Es idempotente: lo ya vinculado no se vuelve a reservar.
func (e *ReservationEngine) Reserve(ctx context.Context, companyID, movementID string) (*AssignmentResult, error) {
	var res *AssignmentResult
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		res, err = e.reserveTx(ctx, repos, companyID, movementID)
		return err
	})
	if err == nil {
		e.opts.Metrics.ReservationResult(res.Status)
	}
	return res, err
}

// ForceAssign marca el movimiento como asignado sin crear vínculos (disponibilidad forzada).
// Al completarlo, lo que falte se toma del stock libre o se registra como negativo si se permite.
func (e *ReservationEngine) ForceAssign(ctx context.Context, companyID, movementID string) (*entity.Movement, error) {
	var m *entity.Movement
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		if m, err = e.lockMovement(ctx, repos, companyID, movementID); err != nil {
			return err
		}
		if !m.State.CanReserve() {
			return fmt.Errorf("forzar movimiento en estado %s: %w", m.State, domain.ErrInvalidState)
		}
		return e.setState(ctx, repos, m, entity.MovementStateAssigned)
	})
	return m, err
}

// Unreserve elimina los vínculos del movimiento y lo deja confirmado.
func (e *ReservationEngine) Unreserve(ctx context.Context, companyID, movementID string) (*entity.Movement, error) {
	var m *entity.Movement
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		if m, err = e.lockMovement(ctx, repos, companyID, movementID); err != nil {
			return err
		}
		if !m.State.CanReserve() {
			return fmt.Errorf("liberar movimiento en estado %s: %w", m.State, domain.ErrInvalidState)
		}
		if err := repos.Reservations.DeleteByMovement(ctx, m.ID); err != nil {
			return err
		}
		return e.setState(ctx, repos, m, entity.MovementStateConfirmed)
	})
	return m, err
}

// Cancel libera las reservas y cancela. No toca quants. Un movimiento hecho no se puede cancelar.
func (e *ReservationEngine) Cancel(ctx context.Context, companyID, movementID string) (*entity.Movement, error) {
	var m *entity.Movement
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		if m, err = e.lockMovement(ctx, repos, companyID, movementID); err != nil {
			return err
		}
		switch m.State {
		case entity.MovementStateCancel:
			return nil
		case entity.MovementStateDone:
			return fmt.Errorf("cancelar movimiento hecho %s: %w", m.ID, domain.ErrInvalidState)
		}
		if err := repos.Reservations.DeleteByMovement(ctx, m.ID); err != nil {
			return err
		}
		return e.setState(ctx, repos, m, entity.MovementStateCancel)
	})
	return m, err
}

// Complete ejecuta el movimiento: retira del origen, deposita en el destino, libera las reservas,
// fija el precio unitario y concilia negativos en el destino.
func (e *ReservationEngine) Complete(ctx context.Context, req CompleteRequest) (*CompletionResult, error) {
	release, err := e.lockDestination(ctx, req.CompanyID, req.MovementID)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *CompletionResult
	err = e.tx.Run(ctx, func(repos repository.Repositories) error {
		var err error
		res, err = e.completeTx(ctx, repos, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.opts.Logger.Info().
		Str("movement_id", res.Movement.ID).
		Str("product_id", res.Movement.ProductID).
		Str("quantity_done", res.Movement.QuantityDone.String()).
		Str("price_unit", res.PriceUnit.String()).
		Int("negatives", len(res.NegativeQuantIDs)).
		Msg("movimiento completado")
	return res, nil
}

// lockDestination toma el candado de conciliación del destino del movimiento, el mismo que usan
// Reconcile y ReconcileLocation, porque completar concilia los negativos del destino.
func (e *ReservationEngine) lockDestination(ctx context.Context, companyID, movementID string) (func(), error) {
	var key string
	err := e.tx.Run(ctx, func(repos repository.Repositories) error {
		m, err := repos.Movements.GetByID(ctx, movementID)
		if err != nil {
			return err
		}
		if m == nil || m.CompanyID != companyID {
			return fmt.Errorf("movimiento %s: %w", movementID, domain.ErrNotFound)
		}
		dest, err := repos.Locations.GetByID(ctx, m.DestLocationID)
		if err != nil {
			return err
		}
		if dest != nil && dest.HoldsStock() {
			key = reconcileLockKey(dest.ID, m.ProductID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if key == "" {
		return func() {}, nil
	}
	return obtainLocks(ctx, e.opts, []string{key})
}

func (e *ReservationEngine) createTx(ctx context.Context, repos repository.Repositories, in CreateMovementInput) (*entity.Movement, error) {
	if in.CompanyID == "" || in.ProductID == "" || in.SourceLocationID == "" || in.DestLocationID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !in.Quantity.IsPositive() || in.PriceUnit.IsNegative() || in.SourceLocationID == in.DestLocationID {
		return nil, domain.ErrInvalidInput
	}
	product, err := e.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("producto %s: %w", in.ProductID, domain.ErrNotFound)
	}
	if product.CompanyID != "" && product.CompanyID != in.CompanyID {
		return nil, fmt.Errorf("producto %s de otra empresa: %w", product.ID, domain.ErrInvalidInput)
	}

	uomID := in.UoMID
	if uomID == "" {
		uomID = product.UoMID
	}
	productQty := in.Quantity
	if uomID != product.UoMID {
		if productQty, err = e.catalog.ToProductUoM(ctx, product.ID, in.Quantity, uomID); err != nil {
			return nil, err
		}
	}
	if err := invdomain.CheckRounding(productQty, product.Rounding); err != nil {
		return nil, err
	}

	for _, id := range []string{in.SourceLocationID, in.DestLocationID} {
		loc, err := repos.Locations.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if loc == nil {
			return nil, fmt.Errorf("ubicación %s: %w", id, domain.ErrNotFound)
		}
		if loc.CompanyID != "" && loc.CompanyID != in.CompanyID {
			return nil, fmt.Errorf("ubicación %s de otra empresa: %w", id, domain.ErrInvalidInput)
		}
	}

	now := e.opts.Clock()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	m := &entity.Movement{
		ID:                uuid.New().String(),
		CompanyID:         in.CompanyID,
		ProductID:         product.ID,
		UoMID:             uomID,
		Quantity:          in.Quantity,
		ProductQty:        productQty,
		SourceLocationID:  in.SourceLocationID,
		DestLocationID:    in.DestLocationID,
		LotID:             in.LotID,
		PackageID:         in.PackageID,
		OwnerID:           in.OwnerID,
		Strict:            in.Strict,
		State:             entity.MovementStateDraft,
		PriceUnit:         in.PriceUnit,
		OriginMovementIDs: append([]string(nil), in.OriginMovementIDs...),
		ReconcilesQuantID: in.ReconcilesQuantID,
		QuantityDone:      decimal.Zero,
		Reference:         in.Reference,
		Date:              date,
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         in.UserID,
	}
	if err := repos.Movements.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (e *ReservationEngine) confirmTx(ctx context.Context, repos repository.Repositories, companyID, movementID string) (*entity.Movement, error) {
	m, err := e.lockMovement(ctx, repos, companyID, movementID)
	if err != nil {
		return nil, err
	}
	if m.State != entity.MovementStateDraft {
		return nil, fmt.Errorf("confirmar movimiento en estado %s: %w", m.State, domain.ErrInvalidState)
	}
	return m, e.setState(ctx, repos, m, entity.MovementStateConfirmed)
}

func (e *ReservationEngine) reserveTx(ctx context.Context, repos repository.Repositories, companyID, movementID string) (*AssignmentResult, error) {
	m, err := e.lockMovement(ctx, repos, companyID, movementID)
	if err != nil {
		return nil, err
	}
	if !m.State.CanReserve() {
		return nil, fmt.Errorf("reservar movimiento en estado %s: %w", m.State, domain.ErrInvalidState)
	}
	src, err := repos.Locations.GetByID(ctx, m.SourceLocationID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("ubicación %s: %w", m.SourceLocationID, domain.ErrNotFound)
	}

	res := &AssignmentResult{MovementID: m.ID, Reserved: decimal.Zero, Remaining: decimal.Zero}
	// Las ubicaciones virtuales son fuentes infinitas: no hay quants que vincular.
	if !src.HoldsStock() {
		res.Status = AssignmentAssigned
		res.Reserved = m.ProductQty
		return res, e.setState(ctx, repos, m, entity.MovementStateAssigned)
	}

	links, err := repos.Reservations.ListByMovement(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	reserved := sumLinks(links)
	remaining := m.ProductQty.Sub(reserved)

	if remaining.IsPositive() {
		candidates, err := e.selector.Select(ctx, repos, SelectRequest{
			ProductID:     m.ProductID,
			LocationID:    m.SourceLocationID,
			Quantity:      remaining,
			Filters:       movementFilters(m, m.LotID),
			Tiers:         []invdomain.PriorityTier{invdomain.TierUnreserved, invdomain.TierOtherReservation},
			MovementID:    m.ID,
			ExactLocation: m.Strict,
		})
		if err != nil {
			return nil, err
		}
		now := e.opts.Clock()
		for _, c := range candidates {
			if !remaining.IsPositive() {
				break
			}
			// Relee el quant bloqueado: otro movimiento pudo reservar entre la selección y el vínculo.
			q, err := repos.Quants.GetForUpdate(ctx, c.QuantID)
			if err != nil {
				return nil, err
			}
			if q == nil || !q.Quantity.IsPositive() {
				continue
			}
			byQuant, err := repos.Reservations.ReservedByQuants(ctx, []string{q.ID})
			if err != nil {
				return nil, err
			}
			free := q.Quantity.Sub(byQuant[q.ID])
			take := decimal.Min(c.Available, free, remaining)
			if !take.IsPositive() {
				continue
			}
			if err := repos.Reservations.Add(ctx, &entity.ReservationLink{
				MovementID: m.ID,
				QuantID:    q.ID,
				Quantity:   take,
				CreatedAt:  now,
			}); err != nil {
				return nil, err
			}
			reserved = reserved.Add(take)
			remaining = remaining.Sub(take)
		}
		if links, err = repos.Reservations.ListByMovement(ctx, m.ID); err != nil {
			return nil, err
		}
	}

	res.Reserved = reserved
	res.Remaining = decimal.Max(remaining, decimal.Zero)
	for _, l := range links {
		res.Links = append(res.Links, *l)
	}
	state := entity.MovementStateWaiting
	switch {
	case !res.Remaining.IsPositive():
		res.Status, state = AssignmentAssigned, entity.MovementStateAssigned
	case reserved.IsPositive():
		res.Status, state = AssignmentPartial, entity.MovementStatePartiallyAssigned
	default:
		res.Status = AssignmentNone
	}
	return res, e.setState(ctx, repos, m, state)
}

// portion parte del movimiento a retirar/depositar con un lote concreto.
type portion struct {
	lotID      string
	qty        decimal.Decimal
	expiration *time.Time
}

// piece porción física retirada del origen que se deposita en el destino con su identidad.
type piece struct {
	move       QuantMove
	inDate     time.Time
	expiration *time.Time
}

func (e *ReservationEngine) completeTx(ctx context.Context, repos repository.Repositories, req CompleteRequest) (*CompletionResult, error) {
	m, err := e.lockMovement(ctx, repos, req.CompanyID, req.MovementID)
	if err != nil {
		return nil, err
	}
	if !m.State.CanComplete() {
		return nil, fmt.Errorf("completar movimiento en estado %s: %w", m.State, domain.ErrInvalidState)
	}
	product, err := e.valuation.product(ctx, m.ProductID)
	if err != nil {
		return nil, err
	}

	qtyDone := m.ProductQty
	if req.QuantityDone.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if req.QuantityDone.IsPositive() {
		qtyDone = req.QuantityDone
		if m.UoMID != product.UoMID {
			if qtyDone, err = e.catalog.ToProductUoM(ctx, product.ID, req.QuantityDone, m.UoMID); err != nil {
				return nil, err
			}
		}
		if err := invdomain.CheckRounding(qtyDone, product.Rounding); err != nil {
			return nil, err
		}
	}
	portions, err := splitPortions(m, qtyDone, req.LotAssignments)
	if err != nil {
		return nil, err
	}

	src, err := repos.Locations.GetByID(ctx, m.SourceLocationID)
	if err != nil {
		return nil, err
	}
	dest, err := repos.Locations.GetByID(ctx, m.DestLocationID)
	if err != nil {
		return nil, err
	}
	if src == nil || dest == nil {
		return nil, fmt.Errorf("ubicaciones del movimiento %s: %w", m.ID, domain.ErrNotFound)
	}

	res := &CompletionResult{}
	incoming := !src.HoldsStock() && dest.HoldsStock()
	var incomingCost decimal.Decimal
	if incoming {
		// Antes de depositar: el promedio usa el stock previo a la entrada.
		if incomingCost, err = e.valuation.incomingCost(ctx, repos, m, product, qtyDone); err != nil {
			return nil, err
		}
	}

	now := e.opts.Clock()
	var pieces []piece
	var consumed []invdomain.CostSlice
	if src.HoldsStock() {
		allowNegative := req.AllowNegative || e.opts.AllowNegativeStock
		standing, err := e.valuation.standingCost(ctx, repos, m.CompanyID, product.ID)
		if err != nil {
			return nil, err
		}
		ownLinks, err := repos.Reservations.ListByMovement(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		own := map[string]decimal.Decimal{}
		for _, l := range ownLinks {
			own[l.QuantID] = own[l.QuantID].Add(l.Quantity)
		}
		for _, p := range portions {
			candidates, err := e.selector.Select(ctx, repos, SelectRequest{
				ProductID:  m.ProductID,
				LocationID: m.SourceLocationID,
				Quantity:   p.qty,
				Filters:    movementFilters(m, p.lotID),
				Tiers: []invdomain.PriorityTier{
					invdomain.TierSameReservation, invdomain.TierUnreserved, invdomain.TierOtherReservation,
				},
				MovementID:    m.ID,
				ExactLocation: m.Strict,
			})
			if err != nil {
				return nil, err
			}
			taken := decimal.Zero
			for _, c := range candidates {
				take, err := e.lockedTake(ctx, repos, c, own[c.QuantID])
				if err != nil {
					return nil, err
				}
				if !take.IsPositive() {
					continue
				}
				if _, err := e.store.Withdraw(ctx, repos, c.QuantID, take, false); err != nil {
					return nil, err
				}
				own[c.QuantID] = decimal.Max(own[c.QuantID].Sub(take), decimal.Zero)
				taken = taken.Add(take)
				mv := QuantMove{
					QuantID: c.QuantID, LocationID: c.LocationID, LotID: c.LotID, PackageID: c.PackageID,
					OwnerID: c.OwnerID, Quantity: take, Cost: c.Cost,
				}
				res.Consumed = append(res.Consumed, mv)
				consumed = append(consumed, invdomain.CostSlice{Quantity: take, Cost: c.Cost})
				pieces = append(pieces, piece{move: mv, inDate: c.InDate, expiration: c.ExpirationDate})
			}
			short := p.qty.Sub(taken)
			if !short.IsPositive() {
				continue
			}
			if !allowNegative {
				return nil, fmt.Errorf("movimiento %s: faltan %s de %s: %w", m.ID, short, p.qty, domain.ErrInsufficientStock)
			}
			key := entity.QuantKey{
				ProductID: m.ProductID, LocationID: m.SourceLocationID, LotID: p.lotID,
				PackageID: m.PackageID, OwnerID: m.OwnerID, CompanyID: m.CompanyID,
			}
			negID, err := e.store.Overdraw(ctx, repos, key, short, standing, m.ID)
			if err != nil {
				return nil, err
			}
			res.NegativeQuantIDs = append(res.NegativeQuantIDs, negID)
			mv := QuantMove{
				QuantID: negID, LocationID: key.LocationID, LotID: key.LotID, PackageID: key.PackageID,
				OwnerID: key.OwnerID, Quantity: short, Cost: standing,
			}
			res.Consumed = append(res.Consumed, mv)
			consumed = append(consumed, invdomain.CostSlice{Quantity: short, Cost: standing})
			pieces = append(pieces, piece{move: mv, inDate: now, expiration: p.expiration})
		}
	}

	if dest.HoldsStock() {
		deposits := pieces
		if incoming {
			deposits = nil
			for _, p := range portions {
				deposits = append(deposits, piece{
					move: QuantMove{
						LotID: p.lotID, PackageID: m.PackageID, OwnerID: m.OwnerID,
						Quantity: p.qty, Cost: incomingCost,
					},
					inDate:     now,
					expiration: p.expiration,
				})
			}
		}
		for _, d := range deposits {
			key := entity.QuantKey{
				ProductID: m.ProductID, LocationID: dest.ID, LotID: d.move.LotID,
				PackageID: d.move.PackageID, OwnerID: d.move.OwnerID, CompanyID: m.CompanyID,
			}
			id, err := e.store.Deposit(ctx, repos, DepositRequest{
				Key:                  key,
				Quantity:             d.move.Quantity,
				Cost:                 d.move.Cost,
				InDate:               d.inDate,
				ExpirationDate:       d.expiration,
				ProducedByMovementID: m.ID,
				ReconcilesWith:       m.ReconcilesQuantID,
			})
			if err != nil {
				return nil, err
			}
			res.Produced = append(res.Produced, QuantMove{
				QuantID: id, LocationID: dest.ID, LotID: key.LotID, PackageID: key.PackageID,
				OwnerID: key.OwnerID, Quantity: d.move.Quantity, Cost: d.move.Cost,
			})
		}
	}

	if err := repos.Reservations.DeleteByMovement(ctx, m.ID); err != nil {
		return nil, err
	}

	switch {
	case incoming:
		m.PriceUnit = incomingCost
	case src.HoldsStock() && !dest.HoldsStock():
		if m.PriceUnit, err = e.valuation.outgoingPrice(ctx, repos, m, product, consumed); err != nil {
			return nil, err
		}
	case m.PriceUnit.IsZero():
		if m.PriceUnit, err = e.valuation.standingCost(ctx, repos, m.CompanyID, product.ID); err != nil {
			return nil, err
		}
	}
	m.QuantityDone = qtyDone
	m.DoneAt = &now
	if err := e.setState(ctx, repos, m, entity.MovementStateDone); err != nil {
		return nil, err
	}
	res.Movement = m
	res.PriceUnit = m.PriceUnit

	if rest := m.ProductQty.Sub(qtyDone); req.CreateBackorder && rest.IsPositive() {
		if res.Backorder, err = e.createBackorder(ctx, repos, m, product, rest); err != nil {
			return nil, err
		}
	}

	if dest.HoldsStock() {
		if res.Reconciliation, err = e.reconciler.reconcileTx(ctx, repos, m.CompanyID, dest.ID, m.ProductID); err != nil {
			return nil, err
		}
	}
	e.opts.Metrics.MovementCompleted(movementKind(src, dest))
	return res, nil
}

// lockedTake bloquea el quant candidato y relee sus reservas: del quant solo se retira lo reservado
// por este movimiento (own) más lo libre. Una reserva ajena confirmada después de la selección
// queda intacta.
func (e *ReservationEngine) lockedTake(ctx context.Context, repos repository.Repositories, c Candidate, own decimal.Decimal) (decimal.Decimal, error) {
	q, err := repos.Quants.GetForUpdate(ctx, c.QuantID)
	if err != nil {
		return decimal.Zero, err
	}
	if q == nil || !q.Quantity.IsPositive() {
		return decimal.Zero, nil
	}
	byQuant, err := repos.Reservations.ReservedByQuants(ctx, []string{q.ID})
	if err != nil {
		return decimal.Zero, err
	}
	others := decimal.Max(byQuant[q.ID].Sub(own), decimal.Zero)
	return decimal.Max(decimal.Min(c.Available, q.Quantity.Sub(others)), decimal.Zero), nil
}

// createBackorder crea el movimiento por el pendiente, en la unidad del producto, ya confirmado.
func (e *ReservationEngine) createBackorder(ctx context.Context, repos repository.Repositories, m *entity.Movement, product *entity.Product, rest decimal.Decimal) (*entity.Movement, error) {
	bo, err := e.createTx(ctx, repos, CreateMovementInput{
		CompanyID:         m.CompanyID,
		UserID:            m.CreatedBy,
		ProductID:         m.ProductID,
		UoMID:             product.UoMID,
		Quantity:          rest,
		SourceLocationID:  m.SourceLocationID,
		DestLocationID:    m.DestLocationID,
		LotID:             m.LotID,
		PackageID:         m.PackageID,
		OwnerID:           m.OwnerID,
		Strict:            m.Strict,
		OriginMovementIDs: m.OriginMovementIDs,
		ReconcilesQuantID: m.ReconcilesQuantID,
		Reference:         m.Reference,
		Date:              m.Date,
	})
	if err != nil {
		return nil, err
	}
	bo.BackorderOfID = m.ID
	bo.State = entity.MovementStateConfirmed
	bo.UpdatedAt = e.opts.Clock()
	if err := repos.Movements.Update(ctx, bo); err != nil {
		return nil, err
	}
	return bo, nil
}

func (e *ReservationEngine) lockMovement(ctx context.Context, repos repository.Repositories, companyID, movementID string) (*entity.Movement, error) {
	m, err := repos.Movements.GetForUpdate(ctx, movementID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.CompanyID != companyID {
		return nil, fmt.Errorf("movimiento %s: %w", movementID, domain.ErrNotFound)
	}
	return m, nil
}

func (e *ReservationEngine) setState(ctx context.Context, repos repository.Repositories, m *entity.Movement, state entity.MovementState) error {
	m.State = state
	m.UpdatedAt = e.opts.Clock()
	return repos.Movements.Update(ctx, m)
}

// splitPortions reparte la cantidad hecha por lote. Sin asignaciones, una sola porción con el lote del movimiento.
func splitPortions(m *entity.Movement, qtyDone decimal.Decimal, assignments []LotAssignment) ([]portion, error) {
	if len(assignments) == 0 {
		return []portion{{lotID: m.LotID, qty: qtyDone}}, nil
	}
	var out []portion
	index := map[string]int{}
	total := decimal.Zero
	for _, a := range assignments {
		if !a.Quantity.IsPositive() {
			return nil, fmt.Errorf("lote %s con cantidad %s: %w", a.LotID, a.Quantity, domain.ErrInvalidInput)
		}
		total = total.Add(a.Quantity)
		if i, ok := index[a.LotID]; ok {
			out[i].qty = out[i].qty.Add(a.Quantity)
			continue
		}
		index[a.LotID] = len(out)
		out = append(out, portion{lotID: a.LotID, qty: a.Quantity, expiration: a.ExpirationDate})
	}
	if !total.Equal(qtyDone) {
		return nil, fmt.Errorf("lotes suman %s, hecho %s: %w", total, qtyDone, domain.ErrInvalidInput)
	}
	return out, nil
}

func movementFilters(m *entity.Movement, lotID string) Filters {
	f := Filters{LotID: lotID, PackageID: m.PackageID, OwnerID: m.OwnerID, CompanyID: m.CompanyID}
	if m.Strict {
		f.WithoutLot = lotID == ""
		f.WithoutPackage = m.PackageID == ""
		f.WithoutOwner = m.OwnerID == ""
	}
	return f
}

func movementKind(src, dest *entity.Location) string {
	switch {
	case !src.HoldsStock() && dest.HoldsStock():
		return "incoming"
	case src.HoldsStock() && !dest.HoldsStock():
		return "outgoing"
	case src.HoldsStock():
		return "internal"
	}
	return "dropship"
}

func sumLinks(links []*entity.ReservationLink) decimal.Decimal {
	total := decimal.Zero
	for _, l := range links {
		total = total.Add(l.Quantity)
	}
	return total
}
