// sql.go
package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// NameQuery selects the display value of one entity, with $1 bound to its id
type NameQuery struct {
	Query  string
	Format func(value string) string // Optional, turns the selected value into a name
}

// DefaultQueries read from the care database schema
func DefaultQueries() map[segment.EntityType]NameQuery {
	return map[segment.EntityType]NameQuery{
		segment.Facility: {
			Query: `SELECT name FROM facility_facility WHERE external_id = $1 AND deleted = false`,
		},
		segment.Patient: {
			Query: `SELECT name FROM facility_patientregistration WHERE external_id = $1 AND deleted = false`,
		},
		segment.Encounter: {
			Query:  `SELECT COALESCE(period_start::text, '') FROM emr_encounter WHERE external_id = $1 AND deleted = false`,
			Format: EncounterName,
		},
	}
}

// SQLSource reads entity names straight from the database
type SQLSource struct {
	db      *sqlx.DB
	queries map[segment.EntityType]NameQuery
	log     zerolog.Logger
}

func NewSQLSource(db *sqlx.DB, queries map[segment.EntityType]NameQuery, log zerolog.Logger) *SQLSource {
	if queries == nil {
		queries = DefaultQueries()
	}
	return &SQLSource{
		db:      db,
		queries: queries,
		log:     log.With().Str("component", "lookup_sql").Logger(),
	}
}

// ConnectSQLSource opens a Postgres connection and verifies it
func ConnectSQLSource(ctx context.Context, dsn string, log zerolog.Logger) (*SQLSource, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewSQLSource(db, nil, log), nil
}

// FetchName implements resolver.NameSource
func (s *SQLSource) FetchName(ctx context.Context, entity segment.EntityType, id string) (string, error) {
	query, ok := s.queries[entity]
	if !ok {
		return "", fmt.Errorf("%w: %s", resolver.ErrUnsupportedEntity, entity)
	}

	var value string
	if err := s.db.GetContext(ctx, &value, query.Query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s %s", resolver.ErrNotFound, entity, id)
		}
		return "", fmt.Errorf("error executing %s query: %w", entity, err)
	}

	s.log.Debug().Str("entity", entity.String()).Str("id", id).Msg("Read name from database")

	if query.Format != nil {
		return query.Format(value), nil
	}
	return value, nil
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}
