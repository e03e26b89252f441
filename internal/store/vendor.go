package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/model"
)

// VendorParams carries optional vendor fields for create and update. On
// update, nil fields keep their current value.
type VendorParams struct {
	Name    *string
	Comment *string
}

// CreateVendor inserts a new vendor.
func (s *Store) CreateVendor(ctx context.Context, p VendorParams) (model.Vendor, error) {
	if p.Name == nil || *p.Name == "" {
		return model.Vendor{}, fmt.Errorf("vendor name is required")
	}

	v := model.Vendor{Registered: now(), Name: *p.Name}
	if p.Comment != nil {
		v.Comment = *p.Comment
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO vendor (registered, name, comment)
		VALUES (?, ?, ?)
	`, v.Registered, v.Name, v.Comment)
	if err != nil {
		return model.Vendor{}, fmt.Errorf("insert vendor: %w", err)
	}
	v.ID, err = res.LastInsertId()
	if err != nil {
		return model.Vendor{}, fmt.Errorf("vendor insert id: %w", err)
	}

	s.publish(events.TypeCreated, events.ResourceVendor, v)
	return v, nil
}

// GetVendor fetches one vendor by id.
func (s *Store) GetVendor(ctx context.Context, id int64) (model.Vendor, error) {
	var v model.Vendor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, registered, name, COALESCE(comment, '')
		FROM vendor
		WHERE id = ?
	`, id).Scan(&v.ID, &v.Registered, &v.Name, &v.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vendor{}, fmt.Errorf("vendor %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Vendor{}, fmt.Errorf("query vendor: %w", err)
	}
	return v, nil
}

// ListVendors returns one page of vendors ordered by name and the total count.
func (s *Store) ListVendors(ctx context.Context, page, pageSize int) ([]model.Vendor, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vendor`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vendors: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registered, name, COALESCE(comment, '')
		FROM vendor
		ORDER BY name COLLATE NOCASE ASC, id ASC
		LIMIT ? OFFSET ?
	`, pageSize, page*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	vendors := make([]model.Vendor, 0)
	for rows.Next() {
		var v model.Vendor
		if err := rows.Scan(&v.ID, &v.Registered, &v.Name, &v.Comment); err != nil {
			return nil, 0, fmt.Errorf("scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate vendors: %w", err)
	}
	return vendors, total, nil
}

// UpdateVendor applies the non-nil fields of p to an existing vendor.
func (s *Store) UpdateVendor(ctx context.Context, id int64, p VendorParams) (model.Vendor, error) {
	v, err := s.GetVendor(ctx, id)
	if err != nil {
		return model.Vendor{}, err
	}
	if p.Name != nil {
		if *p.Name == "" {
			return model.Vendor{}, fmt.Errorf("vendor name must not be empty")
		}
		v.Name = *p.Name
	}
	if p.Comment != nil {
		v.Comment = *p.Comment
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE vendor SET name = ?, comment = ? WHERE id = ?
	`, v.Name, v.Comment, id); err != nil {
		return model.Vendor{}, fmt.Errorf("update vendor: %w", err)
	}

	s.publish(events.TypeUpdated, events.ResourceVendor, v)
	return v, nil
}

// DeleteVendor removes a vendor. Its filaments survive without a vendor,
// which moves them into the unknown-vendor group.
func (s *Store) DeleteVendor(ctx context.Context, id int64) error {
	v, err := s.GetVendor(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vendor delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE filament SET vendor_id = NULL WHERE vendor_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("detach vendor references: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vendor WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete vendor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vendor delete: %w", err)
	}

	s.publish(events.TypeDeleted, events.ResourceVendor, v)
	return nil
}
