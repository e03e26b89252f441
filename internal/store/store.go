// Package store is the SQLite persistence layer for all named resources.
// Every successful create, update and delete publishes a change event on
// the bus so list caches and live subscribers stay in sync.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spooldash/spooldash/internal/events"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle and the event bus.
type Store struct {
	db  *sql.DB
	bus *events.Bus
}

// New returns a store publishing change events on bus. A nil bus disables
// event publication, which tests use.
func New(db *sql.DB, bus *events.Bus) *Store {
	return &Store{db: db, bus: bus}
}

// DB exposes the underlying handle for startup tasks such as seeding.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) publish(typ events.Type, resource string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Type: typ, Resource: resource, Payload: payload})
}

// now returns the timestamp stored on new rows. Microseconds are dropped so
// round-tripping through SQLite keeps values comparable.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// orderClause turns a "field:dir,field:dir" sort expression into an ORDER BY
// clause. Only fields present in allowed are accepted; an empty expression
// yields fallback.
func orderClause(sort string, allowed map[string]string, fallback string) (string, error) {
	if strings.TrimSpace(sort) == "" {
		return fallback, nil
	}

	var parts []string
	for _, item := range strings.Split(sort, ",") {
		field, dir, ok := strings.Cut(strings.TrimSpace(item), ":")
		if !ok {
			return "", fmt.Errorf("invalid sort item %q, want field:direction", item)
		}
		column, ok := allowed[field]
		if !ok {
			return "", fmt.Errorf("cannot sort by field %q", field)
		}
		switch strings.ToLower(dir) {
		case "asc":
			parts = append(parts, column+" ASC")
		case "desc":
			parts = append(parts, column+" DESC")
		default:
			return "", fmt.Errorf("invalid sort direction %q", dir)
		}
	}
	return strings.Join(parts, ", "), nil
}

// idFilter builds an IN-clause for column over ids. The sentinel id -1
// matches rows where the column is NULL.
func idFilter(column string, ids []int64) (string, []any) {
	if len(ids) == 0 {
		return "", nil
	}

	var (
		placeholders []string
		args         []any
		matchNull    bool
	)
	for _, id := range ids {
		if id == -1 {
			matchNull = true
			continue
		}
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	var clauses []string
	if len(placeholders) > 0 {
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	}
	if matchNull {
		clauses = append(clauses, column+" IS NULL")
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}
