package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/location"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.LocationRepository = (*LocationRepo)(nil)

const locationColumns = `id, parent_id, company_id, name, usage, removal_strategy, sequence, lft, rgt, created_at, updated_at`

// LocationRepo árbol de ubicaciones sobre PostgreSQL. lft/rgt se recalculan en cada alta.
type LocationRepo struct {
	q Querier
}

// NewLocationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLocationRepository(q Querier) *LocationRepo {
	return &LocationRepo{q: q}
}

// Create inserta la ubicación y reescribe los intervalos que cambian.
// El LOCK serializa altas concurrentes; dentro de la tx el resto de lecturas no se bloquea.
func (r *LocationRepo) Create(ctx context.Context, loc *entity.Location) error {
	if loc.ID == "" || !loc.Usage.IsValid() {
		return domain.ErrInvalidInput
	}
	if loc.RemovalStrategy != "" && !loc.RemovalStrategy.IsValid() {
		return domain.ErrInvalidInput
	}
	if _, err := r.q.Exec(ctx, `LOCK TABLE locations IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock locations: %w", err)
	}
	query := `
		INSERT INTO locations (` + locationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, now(), now())`
	_, err := r.q.Exec(ctx, query,
		loc.ID, nullString(loc.ParentID), nullString(loc.CompanyID), loc.Name, loc.Usage, loc.RemovalStrategy, loc.Sequence,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("ubicación %s: %w", loc.ID, domain.ErrConflict)
		case isForeignKeyViolation(err):
			return fmt.Errorf("ubicación %s: padre %s no existe: %w", loc.ID, loc.ParentID, domain.ErrInvalidInput)
		}
		return fmt.Errorf("create location: %w", err)
	}

	locs, err := r.all(ctx)
	if err != nil {
		return err
	}
	previous := make(map[string]location.Interval, len(locs))
	for _, l := range locs {
		previous[l.ID] = location.Interval{Left: l.Left, Right: l.Right}
	}
	tree, err := location.NewTree(locs)
	if err != nil {
		return err
	}
	for _, l := range tree.Locations() {
		if previous[l.ID] == (location.Interval{Left: l.Left, Right: l.Right}) {
			continue
		}
		if _, err := r.q.Exec(ctx, `UPDATE locations SET lft = $2, rgt = $3 WHERE id = $1`, l.ID, l.Left, l.Right); err != nil {
			return fmt.Errorf("update location interval: %w", err)
		}
		if l.ID == loc.ID {
			loc.Left, loc.Right = l.Left, l.Right
		}
	}
	return nil
}

// GetByID obtiene una ubicación; nil si no existe.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	l, err := scanLocation(r.q.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

// Tree carga todas las ubicaciones. Los intervalos persistidos se recalculan igual en memoria.
func (r *LocationRepo) Tree(ctx context.Context) (*location.Tree, error) {
	locs, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return location.NewTree(locs)
}

func (r *LocationRepo) all(ctx context.Context) ([]*entity.Location, error) {
	rows, err := r.q.Query(ctx, `SELECT `+locationColumns+` FROM locations ORDER BY lft, id`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	var list []*entity.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func scanLocation(row pgx.Row) (*entity.Location, error) {
	var l entity.Location
	var parentID, companyID *string
	err := row.Scan(&l.ID, &parentID, &companyID, &l.Name, &l.Usage, &l.RemovalStrategy,
		&l.Sequence, &l.Left, &l.Right, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.ParentID = derefString(parentID)
	l.CompanyID = derefString(companyID)
	return &l, nil
}
