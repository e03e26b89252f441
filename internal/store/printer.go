package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/model"
)

// PrinterParams carries optional printer fields for create and update.
type PrinterParams struct {
	Name                    *string
	PowerWatts              *float64
	DepreciationCostPerHour *float64
	Comment                 *string
}

// CreatePrinter inserts a new printer.
func (s *Store) CreatePrinter(ctx context.Context, p PrinterParams) (model.Printer, error) {
	if p.Name == nil || *p.Name == "" {
		return model.Printer{}, fmt.Errorf("printer name is required")
	}

	printer := model.Printer{
		Registered:              now(),
		Name:                    *p.Name,
		PowerWatts:              p.PowerWatts,
		DepreciationCostPerHour: p.DepreciationCostPerHour,
	}
	if p.Comment != nil {
		printer.Comment = *p.Comment
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO printer (registered, name, power_watts, depreciation_cost_per_hour, comment)
		VALUES (?, ?, ?, ?, ?)
	`, printer.Registered, printer.Name, nullFloat(printer.PowerWatts),
		nullFloat(printer.DepreciationCostPerHour), printer.Comment)
	if err != nil {
		return model.Printer{}, fmt.Errorf("insert printer: %w", err)
	}
	printer.ID, err = res.LastInsertId()
	if err != nil {
		return model.Printer{}, fmt.Errorf("printer insert id: %w", err)
	}

	s.publish(events.TypeCreated, events.ResourcePrinter, printer)
	return printer, nil
}

// GetPrinter fetches one printer by id.
func (s *Store) GetPrinter(ctx context.Context, id int64) (model.Printer, error) {
	var (
		printer model.Printer
		power   sql.NullFloat64
		deprec  sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, registered, name, power_watts, depreciation_cost_per_hour, COALESCE(comment, '')
		FROM printer
		WHERE id = ?
	`, id).Scan(&printer.ID, &printer.Registered, &printer.Name, &power, &deprec, &printer.Comment)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Printer{}, fmt.Errorf("printer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Printer{}, fmt.Errorf("query printer: %w", err)
	}
	printer.PowerWatts = floatPtr(power)
	printer.DepreciationCostPerHour = floatPtr(deprec)
	return printer, nil
}

// ListPrinters returns one page of printers ordered by id and the total count.
func (s *Store) ListPrinters(ctx context.Context, page, pageSize int) ([]model.Printer, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM printer`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count printers: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registered, name, power_watts, depreciation_cost_per_hour, COALESCE(comment, '')
		FROM printer
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`, pageSize, page*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("query printers: %w", err)
	}
	defer rows.Close()

	printers := make([]model.Printer, 0)
	for rows.Next() {
		var (
			printer model.Printer
			power   sql.NullFloat64
			deprec  sql.NullFloat64
		)
		if err := rows.Scan(&printer.ID, &printer.Registered, &printer.Name, &power, &deprec, &printer.Comment); err != nil {
			return nil, 0, fmt.Errorf("scan printer: %w", err)
		}
		printer.PowerWatts = floatPtr(power)
		printer.DepreciationCostPerHour = floatPtr(deprec)
		printers = append(printers, printer)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate printers: %w", err)
	}
	return printers, total, nil
}

// UpdatePrinter applies the non-nil fields of p to an existing printer.
func (s *Store) UpdatePrinter(ctx context.Context, id int64, p PrinterParams) (model.Printer, error) {
	printer, err := s.GetPrinter(ctx, id)
	if err != nil {
		return model.Printer{}, err
	}
	if p.Name != nil {
		if *p.Name == "" {
			return model.Printer{}, fmt.Errorf("printer name must not be empty")
		}
		printer.Name = *p.Name
	}
	if p.PowerWatts != nil {
		printer.PowerWatts = p.PowerWatts
	}
	if p.DepreciationCostPerHour != nil {
		printer.DepreciationCostPerHour = p.DepreciationCostPerHour
	}
	if p.Comment != nil {
		printer.Comment = *p.Comment
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE printer
		SET name = ?, power_watts = ?, depreciation_cost_per_hour = ?, comment = ?
		WHERE id = ?
	`, printer.Name, nullFloat(printer.PowerWatts), nullFloat(printer.DepreciationCostPerHour),
		printer.Comment, id); err != nil {
		return model.Printer{}, fmt.Errorf("update printer: %w", err)
	}

	s.publish(events.TypeUpdated, events.ResourcePrinter, printer)
	return printer, nil
}

// DeletePrinter removes a printer. Saved calculations that referenced it
// keep their stored components and rates; only the reference is cleared.
func (s *Store) DeletePrinter(ctx context.Context, id int64) error {
	printer, err := s.GetPrinter(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin printer delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cost_calculation SET printer_id = NULL WHERE printer_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("detach printer references: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM printer WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete printer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit printer delete: %w", err)
	}

	s.publish(events.TypeDeleted, events.ResourcePrinter, printer)
	return nil
}
