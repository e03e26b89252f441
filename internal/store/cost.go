package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/model"
)

// CostParams carries every writable field of a cost calculation. All fields
// are optional; on update, nil keeps the current value. The computed
// components are written by the gateway, never derived here.
type CostParams struct {
	PrinterID  *int64
	FilamentID *int64

	PrintTimeHours  *float64
	LaborTimeHours  *float64
	FilamentWeightG *float64

	EnergyCostPerKwh *float64
	LaborCostPerHour *float64
	FailureRate      *float64
	MarkupRate       *float64

	MaterialCost     *float64
	EnergyCost       *float64
	DepreciationCost *float64
	LaborCost        *float64
	ConsumablesCost  *float64
	BasePrice        *float64
	UpliftedPrice    *float64
	FinalPrice       *float64

	Currency  *string
	ItemNames *string
	Notes     *string
}

// CostFilter selects and orders the calculation history. PrinterIDs and
// FilamentIDs are combined with AND; within each set the ids are ORed.
type CostFilter struct {
	PrinterIDs  []int64
	FilamentIDs []int64
	Sort        string
	Limit       *int
	Offset      int
}

var costSortColumns = map[string]string{
	"id":                "c.id",
	"created":           "c.created",
	"printer_id":        "c.printer_id",
	"filament_id":       "c.filament_id",
	"print_time_hours":  "c.print_time_hours",
	"labor_time_hours":  "c.labor_time_hours",
	"filament_weight_g": "c.filament_weight_g",
	"base_price":        "c.base_price",
	"uplifted_price":    "c.uplifted_price",
	"final_price":       "c.final_price",
	"printer.name":      "p.name",
	"filament.name":     "f.name",
}

const costColumns = `
	c.id, c.created, c.printer_id, c.filament_id,
	c.print_time_hours, c.labor_time_hours, c.filament_weight_g,
	c.energy_cost_per_kwh, c.labor_cost_per_hour,
	c.material_cost, c.energy_cost, c.depreciation_cost, c.labor_cost, c.consumables_cost,
	c.failure_rate, c.markup_rate, c.base_price, c.uplifted_price, c.final_price,
	COALESCE(c.currency, ''), COALESCE(c.item_names, ''), COALESCE(c.notes, ''),
	p.name, f.name
`

const costJoin = `
	FROM cost_calculation c
	LEFT JOIN printer p ON p.id = c.printer_id
	LEFT JOIN filament f ON f.id = c.filament_id
`

func scanCost(scan func(dest ...any) error) (model.CostCalculation, error) {
	var (
		c            model.CostCalculation
		printerID    sql.NullInt64
		filamentID   sql.NullInt64
		nums         [16]sql.NullFloat64
		printerName  sql.NullString
		filamentName sql.NullString
	)
	if err := scan(&c.ID, &c.Created, &printerID, &filamentID,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4],
		&nums[5], &nums[6], &nums[7], &nums[8], &nums[9],
		&nums[10], &nums[11], &nums[12], &nums[13], &nums[14],
		&c.Currency, &c.ItemNames, &c.Notes,
		&printerName, &filamentName); err != nil {
		return model.CostCalculation{}, err
	}

	c.PrinterID = intPtr(printerID)
	c.FilamentID = intPtr(filamentID)
	c.PrintTimeHours = floatPtr(nums[0])
	c.LaborTimeHours = floatPtr(nums[1])
	c.FilamentWeightG = floatPtr(nums[2])
	c.EnergyCostPerKwh = floatPtr(nums[3])
	c.LaborCostPerHour = floatPtr(nums[4])
	c.MaterialCost = floatPtr(nums[5])
	c.EnergyCost = floatPtr(nums[6])
	c.DepreciationCost = floatPtr(nums[7])
	c.LaborCost = floatPtr(nums[8])
	c.ConsumablesCost = floatPtr(nums[9])
	c.FailureRate = floatPtr(nums[10])
	c.MarkupRate = floatPtr(nums[11])
	c.BasePrice = floatPtr(nums[12])
	c.UpliftedPrice = floatPtr(nums[13])
	c.FinalPrice = floatPtr(nums[14])

	if c.PrinterID != nil && printerName.Valid {
		c.Printer = &model.Printer{ID: *c.PrinterID, Name: printerName.String}
	}
	if c.FilamentID != nil && filamentName.Valid {
		c.Filament = &model.Filament{ID: *c.FilamentID, Name: filamentName.String}
	}
	return c, nil
}

// CreateCost inserts a new cost calculation. Referenced printer and
// filament rows must exist.
func (s *Store) CreateCost(ctx context.Context, p CostParams) (model.CostCalculation, error) {
	if err := s.checkCostRefs(ctx, p); err != nil {
		return model.CostCalculation{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_calculation (
			created, printer_id, filament_id,
			print_time_hours, labor_time_hours, filament_weight_g,
			energy_cost_per_kwh, labor_cost_per_hour,
			material_cost, energy_cost, depreciation_cost, labor_cost, consumables_cost,
			failure_rate, markup_rate, base_price, uplifted_price, final_price,
			currency, item_names, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, now(), nullInt(p.PrinterID), nullInt(p.FilamentID),
		nullFloat(p.PrintTimeHours), nullFloat(p.LaborTimeHours), nullFloat(p.FilamentWeightG),
		nullFloat(p.EnergyCostPerKwh), nullFloat(p.LaborCostPerHour),
		nullFloat(p.MaterialCost), nullFloat(p.EnergyCost), nullFloat(p.DepreciationCost),
		nullFloat(p.LaborCost), nullFloat(p.ConsumablesCost),
		nullFloat(p.FailureRate), nullFloat(p.MarkupRate),
		nullFloat(p.BasePrice), nullFloat(p.UpliftedPrice), nullFloat(p.FinalPrice),
		nullString(p.Currency), nullString(p.ItemNames), nullString(p.Notes))
	if err != nil {
		return model.CostCalculation{}, fmt.Errorf("insert cost calculation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.CostCalculation{}, fmt.Errorf("cost calculation insert id: %w", err)
	}

	c, err := s.GetCost(ctx, id)
	if err != nil {
		return model.CostCalculation{}, err
	}
	s.publish(events.TypeCreated, events.ResourceCost, c)
	return c, nil
}

// GetCost fetches one cost calculation with printer and filament names joined in.
func (s *Store) GetCost(ctx context.Context, id int64) (model.CostCalculation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+costColumns+costJoin+` WHERE c.id = ?`, id)
	c, err := scanCost(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CostCalculation{}, fmt.Errorf("cost calculation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.CostCalculation{}, fmt.Errorf("query cost calculation: %w", err)
	}
	return c, nil
}

// ListCosts returns the filtered, sorted calculation history and the total
// number of matching rows regardless of pagination.
func (s *Store) ListCosts(ctx context.Context, f CostFilter) ([]model.CostCalculation, int, error) {
	var (
		where []string
		args  []any
	)
	if clause, a := idFilter("c.printer_id", f.PrinterIDs); clause != "" {
		where = append(where, clause)
		args = append(args, a...)
	}
	if clause, a := idFilter("c.filament_id", f.FilamentIDs); clause != "" {
		where = append(where, clause)
		args = append(args, a...)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+costJoin+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cost calculations: %w", err)
	}

	order, err := orderClause(f.Sort, costSortColumns, "c.created DESC, c.id DESC")
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + costColumns + costJoin + whereClause + ` ORDER BY ` + order
	if f.Limit != nil {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, *f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query cost calculations: %w", err)
	}
	defer rows.Close()

	items := make([]model.CostCalculation, 0)
	for rows.Next() {
		c, err := scanCost(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan cost calculation: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate cost calculations: %w", err)
	}
	return items, total, nil
}

// UpdateCost applies the non-nil fields of p to an existing calculation.
func (s *Store) UpdateCost(ctx context.Context, id int64, p CostParams) (model.CostCalculation, error) {
	c, err := s.GetCost(ctx, id)
	if err != nil {
		return model.CostCalculation{}, err
	}
	if err := s.checkCostRefs(ctx, p); err != nil {
		return model.CostCalculation{}, err
	}

	merge := func(dst **float64, src *float64) {
		if src != nil {
			*dst = src
		}
	}
	if p.PrinterID != nil {
		c.PrinterID = p.PrinterID
	}
	if p.FilamentID != nil {
		c.FilamentID = p.FilamentID
	}
	merge(&c.PrintTimeHours, p.PrintTimeHours)
	merge(&c.LaborTimeHours, p.LaborTimeHours)
	merge(&c.FilamentWeightG, p.FilamentWeightG)
	merge(&c.EnergyCostPerKwh, p.EnergyCostPerKwh)
	merge(&c.LaborCostPerHour, p.LaborCostPerHour)
	merge(&c.MaterialCost, p.MaterialCost)
	merge(&c.EnergyCost, p.EnergyCost)
	merge(&c.DepreciationCost, p.DepreciationCost)
	merge(&c.LaborCost, p.LaborCost)
	merge(&c.ConsumablesCost, p.ConsumablesCost)
	merge(&c.FailureRate, p.FailureRate)
	merge(&c.MarkupRate, p.MarkupRate)
	merge(&c.BasePrice, p.BasePrice)
	merge(&c.UpliftedPrice, p.UpliftedPrice)
	merge(&c.FinalPrice, p.FinalPrice)
	if p.Currency != nil {
		c.Currency = *p.Currency
	}
	if p.ItemNames != nil {
		c.ItemNames = *p.ItemNames
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE cost_calculation SET
			printer_id = ?, filament_id = ?,
			print_time_hours = ?, labor_time_hours = ?, filament_weight_g = ?,
			energy_cost_per_kwh = ?, labor_cost_per_hour = ?,
			material_cost = ?, energy_cost = ?, depreciation_cost = ?, labor_cost = ?,
			consumables_cost = ?, failure_rate = ?, markup_rate = ?,
			base_price = ?, uplifted_price = ?, final_price = ?,
			currency = ?, item_names = ?, notes = ?
		WHERE id = ?
	`, nullInt(c.PrinterID), nullInt(c.FilamentID),
		nullFloat(c.PrintTimeHours), nullFloat(c.LaborTimeHours), nullFloat(c.FilamentWeightG),
		nullFloat(c.EnergyCostPerKwh), nullFloat(c.LaborCostPerHour),
		nullFloat(c.MaterialCost), nullFloat(c.EnergyCost), nullFloat(c.DepreciationCost),
		nullFloat(c.LaborCost), nullFloat(c.ConsumablesCost),
		nullFloat(c.FailureRate), nullFloat(c.MarkupRate),
		nullFloat(c.BasePrice), nullFloat(c.UpliftedPrice), nullFloat(c.FinalPrice),
		c.Currency, c.ItemNames, c.Notes, id); err != nil {
		return model.CostCalculation{}, fmt.Errorf("update cost calculation: %w", err)
	}

	c, err = s.GetCost(ctx, id)
	if err != nil {
		return model.CostCalculation{}, err
	}
	s.publish(events.TypeUpdated, events.ResourceCost, c)
	return c, nil
}

// DeleteCost removes a calculation from the history.
func (s *Store) DeleteCost(ctx context.Context, id int64) error {
	c, err := s.GetCost(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cost_calculation WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete cost calculation: %w", err)
	}
	s.publish(events.TypeDeleted, events.ResourceCost, c)
	return nil
}

func (s *Store) checkCostRefs(ctx context.Context, p CostParams) error {
	if p.PrinterID != nil {
		if _, err := s.GetPrinter(ctx, *p.PrinterID); err != nil {
			return err
		}
	}
	if p.FilamentID != nil {
		if _, err := s.GetFilament(ctx, *p.FilamentID); err != nil {
			return err
		}
	}
	return nil
}
