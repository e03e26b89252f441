// Package catalog loads the printer and filament reference data and derives
// the filament type groups used to stabilize material pricing when several
// physical spools share a nominal type.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spooldash/spooldash/internal/model"
)

const (
	unknownVendor   = "Unknown vendor"
	unknownMaterial = "Unknown material"

	// pageSize caps each provider fetch while loading the full catalogs.
	pageSize = 200
)

// Provider is the paginated data source, implemented by the store.
type Provider interface {
	ListPrinters(ctx context.Context, page, pageSize int) ([]model.Printer, int, error)
	ListFilaments(ctx context.Context, page, pageSize int) ([]model.Filament, int, error)
}

// FilamentGroup clusters filaments sharing (vendor, material), carrying an
// averaged price across the members that declare one. Groups are derived
// views; they are never persisted.
type FilamentGroup struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	FilamentIDs  []int64  `json:"filament_ids"`
	AveragePrice *float64 `json:"average_price,omitempty"`
}

// Catalog is one loaded snapshot of the reference data.
type Catalog struct {
	Printers  []model.Printer
	Filaments []model.Filament
	Groups    []FilamentGroup

	printersByID  map[int64]model.Printer
	filamentsByID map[int64]model.Filament
	groupPrice    map[int64]float64
}

// Load fetches the complete printer and filament catalogs from the provider
// in pages of 200 and derives the filament groups. Provider errors
// propagate unchanged.
func Load(ctx context.Context, p Provider) (*Catalog, error) {
	c := &Catalog{
		printersByID:  make(map[int64]model.Printer),
		filamentsByID: make(map[int64]model.Filament),
	}

	for page := 0; ; page++ {
		printers, total, err := p.ListPrinters(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("load printers page %d: %w", page, err)
		}
		c.Printers = append(c.Printers, printers...)
		if len(printers) == 0 || len(c.Printers) >= total {
			break
		}
	}
	for page := 0; ; page++ {
		filaments, total, err := p.ListFilaments(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("load filaments page %d: %w", page, err)
		}
		c.Filaments = append(c.Filaments, filaments...)
		if len(filaments) == 0 || len(c.Filaments) >= total {
			break
		}
	}

	for _, printer := range c.Printers {
		c.printersByID[printer.ID] = printer
	}
	for _, filament := range c.Filaments {
		c.filamentsByID[filament.ID] = filament
	}

	c.Groups = GroupFilaments(c.Filaments)
	c.groupPrice = priceIndex(c.Groups)
	return c, nil
}

// GroupKey returns the merge key for a filament: lower-cased vendor name and
// material joined with "|". Missing values fall back to the unknown labels.
func GroupKey(f model.Filament) string {
	vendor := unknownVendor
	if f.Vendor != nil && f.Vendor.Name != "" {
		vendor = f.Vendor.Name
	}
	material := unknownMaterial
	if f.Material != nil {
		material = *f.Material
	}
	mat := strings.TrimSpace(strings.ToLower(material))
	if mat == "" {
		mat = unknownMaterial
	}
	return strings.ToLower(vendor) + "|" + mat
}

// GroupFilaments partitions filaments into type groups. Each input filament
// lands in exactly one group. The average price covers only members with a
// defined price; a group of unpriced filaments has no average. Groups are
// ordered by label, case-insensitively.
func GroupFilaments(filaments []model.Filament) []FilamentGroup {
	byKey := make(map[string]*FilamentGroup)
	var order []string

	for _, f := range filaments {
		key := GroupKey(f)
		group, ok := byKey[key]
		if !ok {
			vendor := unknownVendor
			if f.Vendor != nil && f.Vendor.Name != "" {
				vendor = f.Vendor.Name
			}
			material := unknownMaterial
			if f.Material != nil && strings.TrimSpace(*f.Material) != "" {
				material = *f.Material
			}
			group = &FilamentGroup{Key: key, Label: vendor + " - " + material}
			byKey[key] = group
			order = append(order, key)
		}
		group.FilamentIDs = append(group.FilamentIDs, f.ID)
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, f := range filaments {
		if f.Price == nil {
			continue
		}
		key := GroupKey(f)
		sums[key] += *f.Price
		counts[key]++
	}
	for key, group := range byKey {
		if n := counts[key]; n > 0 {
			avg := sums[key] / float64(n)
			group.AveragePrice = &avg
		}
	}

	groups := make([]FilamentGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Label) < strings.ToLower(groups[j].Label)
	})
	return groups
}

// priceIndex builds the filament-id to group-average reverse index in one
// pass over the groups.
func priceIndex(groups []FilamentGroup) map[int64]float64 {
	index := make(map[int64]float64)
	for _, group := range groups {
		if group.AveragePrice == nil {
			continue
		}
		for _, id := range group.FilamentIDs {
			index[id] = *group.AveragePrice
		}
	}
	return index
}

// Printer implements costing.Catalog.
func (c *Catalog) Printer(id int64) (model.Printer, bool) {
	p, ok := c.printersByID[id]
	return p, ok
}

// Filament implements costing.Catalog.
func (c *Catalog) Filament(id int64) (model.Filament, bool) {
	f, ok := c.filamentsByID[id]
	return f, ok
}

// GroupPrice implements costing.Catalog.
func (c *Catalog) GroupPrice(filamentID int64) (float64, bool) {
	price, ok := c.groupPrice[filamentID]
	return price, ok
}
