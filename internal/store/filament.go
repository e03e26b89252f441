package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/model"
)

// FilamentParams carries optional filament fields for create and update.
type FilamentParams struct {
	Name     *string
	VendorID *int64
	Material *string
	Price    *float64
	Weight   *float64
	Comment  *string
}

const filamentColumns = `
	f.id, f.registered, f.name, f.vendor_id, f.material, f.price, f.weight, COALESCE(f.comment, ''),
	v.id, v.registered, v.name, v.comment
`

const filamentJoin = `
	FROM filament f
	LEFT JOIN vendor v ON v.id = f.vendor_id
`

func scanFilament(scan func(dest ...any) error) (model.Filament, error) {
	var (
		f          model.Filament
		vendorID   sql.NullInt64
		material   sql.NullString
		price      sql.NullFloat64
		weight     sql.NullFloat64
		vID        sql.NullInt64
		vReg       sql.NullTime
		vName      sql.NullString
		vComment   sql.NullString
	)
	if err := scan(&f.ID, &f.Registered, &f.Name, &vendorID, &material, &price, &weight, &f.Comment,
		&vID, &vReg, &vName, &vComment); err != nil {
		return model.Filament{}, err
	}
	f.VendorID = intPtr(vendorID)
	f.Material = stringPtr(material)
	f.Price = floatPtr(price)
	f.Weight = floatPtr(weight)
	if vID.Valid {
		f.Vendor = &model.Vendor{ID: vID.Int64, Registered: vReg.Time, Name: vName.String}
		if vComment.Valid {
			f.Vendor.Comment = vComment.String
		}
	}
	return f, nil
}

// CreateFilament inserts a new filament. A referenced vendor must exist.
func (s *Store) CreateFilament(ctx context.Context, p FilamentParams) (model.Filament, error) {
	if p.Name == nil || *p.Name == "" {
		return model.Filament{}, fmt.Errorf("filament name is required")
	}
	if p.VendorID != nil {
		if _, err := s.GetVendor(ctx, *p.VendorID); err != nil {
			return model.Filament{}, err
		}
	}

	comment := ""
	if p.Comment != nil {
		comment = *p.Comment
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO filament (registered, name, vendor_id, material, price, weight, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, now(), *p.Name, nullInt(p.VendorID), nullString(p.Material),
		nullFloat(p.Price), nullFloat(p.Weight), comment)
	if err != nil {
		return model.Filament{}, fmt.Errorf("insert filament: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Filament{}, fmt.Errorf("filament insert id: %w", err)
	}

	f, err := s.GetFilament(ctx, id)
	if err != nil {
		return model.Filament{}, err
	}
	s.publish(events.TypeCreated, events.ResourceFilament, f)
	return f, nil
}

// GetFilament fetches one filament, with its vendor joined in.
func (s *Store) GetFilament(ctx context.Context, id int64) (model.Filament, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+filamentColumns+filamentJoin+` WHERE f.id = ?`, id)
	f, err := scanFilament(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Filament{}, fmt.Errorf("filament %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Filament{}, fmt.Errorf("query filament: %w", err)
	}
	return f, nil
}

// ListFilaments returns one page of filaments ordered by id and the total count.
func (s *Store) ListFilaments(ctx context.Context, page, pageSize int) ([]model.Filament, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM filament`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count filaments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+filamentColumns+filamentJoin+`
		ORDER BY f.id ASC
		LIMIT ? OFFSET ?
	`, pageSize, page*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("query filaments: %w", err)
	}
	defer rows.Close()

	filaments := make([]model.Filament, 0)
	for rows.Next() {
		f, err := scanFilament(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan filament: %w", err)
		}
		filaments = append(filaments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate filaments: %w", err)
	}
	return filaments, total, nil
}

// UpdateFilament applies the non-nil fields of p to an existing filament.
func (s *Store) UpdateFilament(ctx context.Context, id int64, p FilamentParams) (model.Filament, error) {
	f, err := s.GetFilament(ctx, id)
	if err != nil {
		return model.Filament{}, err
	}
	if p.Name != nil {
		if *p.Name == "" {
			return model.Filament{}, fmt.Errorf("filament name must not be empty")
		}
		f.Name = *p.Name
	}
	if p.VendorID != nil {
		if _, err := s.GetVendor(ctx, *p.VendorID); err != nil {
			return model.Filament{}, err
		}
		f.VendorID = p.VendorID
	}
	if p.Material != nil {
		f.Material = p.Material
	}
	if p.Price != nil {
		f.Price = p.Price
	}
	if p.Weight != nil {
		f.Weight = p.Weight
	}
	if p.Comment != nil {
		f.Comment = *p.Comment
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE filament
		SET name = ?, vendor_id = ?, material = ?, price = ?, weight = ?, comment = ?
		WHERE id = ?
	`, f.Name, nullInt(f.VendorID), nullString(f.Material), nullFloat(f.Price),
		nullFloat(f.Weight), f.Comment, id); err != nil {
		return model.Filament{}, fmt.Errorf("update filament: %w", err)
	}

	f, err = s.GetFilament(ctx, id)
	if err != nil {
		return model.Filament{}, err
	}
	s.publish(events.TypeUpdated, events.ResourceFilament, f)
	return f, nil
}

// DeleteFilament removes a filament, clearing the reference on any saved
// calculation that used it.
func (s *Store) DeleteFilament(ctx context.Context, id int64) error {
	f, err := s.GetFilament(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin filament delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cost_calculation SET filament_id = NULL WHERE filament_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("detach filament references: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM filament WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete filament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit filament delete: %w", err)
	}

	s.publish(events.TypeDeleted, events.ResourceFilament, f)
	return nil
}
