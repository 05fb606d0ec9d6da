package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/refundly/webhooks/pkg/domain/vendor"
)

// VendorRepository is the PostgreSQL implementation of vendor.Repository.
type VendorRepository struct {
	db *DB
}

// NewVendorRepository creates a new VendorRepository.
func NewVendorRepository(db *DB) *VendorRepository {
	return &VendorRepository{db: db}
}

var _ vendor.Repository = (*VendorRepository)(nil)

// Create inserts a vendor and assigns its id.
func (r *VendorRepository) Create(ctx context.Context, v *vendor.Vendor) error {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO vendors (name, created_at) VALUES ($1, $2) RETURNING id`,
		v.Name(), v.CreatedAt(),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("create vendor: %w", err)
	}
	v.SetID(vendor.ID(id))
	return nil
}

// GetByID retrieves a vendor by id.
func (r *VendorRepository) GetByID(ctx context.Context, id vendor.ID) (*vendor.Vendor, error) {
	var (
		name      string
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT name, created_at FROM vendors WHERE id = $1`, id.Int64(),
	).Scan(&name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vendor.ErrVendorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return vendor.Reconstruct(id, name, createdAt), nil
}

// ListIDs returns every vendor id in ascending order.
func (r *VendorRepository) ListIDs(ctx context.Context) ([]vendor.ID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM vendors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list vendor ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]vendor.ID, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan vendor id: %w", err)
		}
		ids = append(ids, vendor.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor ids: %w", err)
	}
	return ids, nil
}
