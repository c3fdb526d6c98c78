package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/carvalue/internal/domain"
)

// Repository defines the vehicle operations of the record store used by the valuation engine.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Vehicle, error)
	List(ctx context.Context) ([]domain.Vehicle, error)
	ListWithExternalID(ctx context.Context) ([]domain.Vehicle, error)
	UpdateReferencePrice(ctx context.Context, id uuid.UUID, price domain.Money, syncedAt time.Time) error
}

// PgRepository implements Repository with PostgreSQL. Money fields and the expense list are stored
// as JSONB so each keeps its own currency, rate and date.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL vehicle repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const selectVehicle = `SELECT id, brand, model, year, status, COALESCE(external_id, ''),
	acquisition_cost, expenses, reference_price, target_price, public_price, reference_synced_at
	FROM vehicles`

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (domain.Vehicle, error) {
	v, err := scanVehicle(r.pool.QueryRow(ctx, selectVehicle+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
		}
		return domain.Vehicle{}, fmt.Errorf("getting vehicle %s: %w", id, err)
	}
	return v, nil
}

// List returns every vehicle still in stock.
func (r *PgRepository) List(ctx context.Context) ([]domain.Vehicle, error) {
	return r.query(ctx, selectVehicle+` WHERE status <> 'sold' ORDER BY brand, model, year`)
}

// ListWithExternalID returns in-stock vehicles that carry a pricing provider identifier.
func (r *PgRepository) ListWithExternalID(ctx context.Context) ([]domain.Vehicle, error) {
	return r.query(ctx, selectVehicle+` WHERE status <> 'sold' AND COALESCE(external_id, '') <> '' ORDER BY id`)
}

func (r *PgRepository) UpdateReferencePrice(ctx context.Context, id uuid.UUID, price domain.Money, syncedAt time.Time) error {
	data, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("marshaling reference price: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE vehicles SET reference_price = $2::jsonb, reference_synced_at = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, json.RawMessage(data), syncedAt)
	if err != nil {
		return fmt.Errorf("updating reference price of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PgRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Vehicle, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vehicles: %w", err)
	}
	return vehicles, nil
}

func scanVehicle(row pgx.Row) (domain.Vehicle, error) {
	var (
		v                                        domain.Vehicle
		status                                   string
		acquisition, expenses, ref, target, pub []byte
	)
	err := row.Scan(&v.ID, &v.Brand, &v.Model, &v.Year, &status, &v.ExternalID,
		&acquisition, &expenses, &ref, &target, &pub, &v.ReferenceSyncedAt)
	if err != nil {
		return domain.Vehicle{}, err
	}
	v.Status = domain.VehicleStatus(status)

	if v.AcquisitionCost, err = decodeMoney(acquisition); err != nil {
		return domain.Vehicle{}, fmt.Errorf("acquisition cost of %s: %w", v.ID, err)
	}
	if v.ReferencePrice, err = decodeMoney(ref); err != nil {
		return domain.Vehicle{}, fmt.Errorf("reference price of %s: %w", v.ID, err)
	}
	if v.TargetPrice, err = decodeMoney(target); err != nil {
		return domain.Vehicle{}, fmt.Errorf("target price of %s: %w", v.ID, err)
	}
	if v.PublicPrice, err = decodeMoney(pub); err != nil {
		return domain.Vehicle{}, fmt.Errorf("public price of %s: %w", v.ID, err)
	}
	if len(expenses) > 0 {
		if err := json.Unmarshal(expenses, &v.Expenses); err != nil {
			return domain.Vehicle{}, fmt.Errorf("expenses of %s: %w", v.ID, err)
		}
	}
	return v, nil
}

func decodeMoney(data []byte) (*domain.Money, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var m domain.Money
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
