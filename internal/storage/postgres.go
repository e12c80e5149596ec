package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/geobus/backend-go/internal/models"
	"github.com/rs/zerolog/log"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema.sql
var schemaSQL string

// deleteBatchSize caps the id list of a single DELETE statement.
const deleteBatchSize = 1000

const stopColumns = `stop_id, stop_name, latitude, longitude, ville`

const positionColumns = `id, bus_id, latitude, longitude, ligne, timestamp`

// Postgres is a Store backed by PostgreSQL through the pgx driver.
type Postgres struct {
	db *sql.DB
}

var (
	_ Store               = (*Postgres)(nil)
	_ NativeNearestFinder = (*Postgres)(nil)
)

// Open opens a pooled connection. It does not contact the server; call Ping.
func Open(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the tables and indexes when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	log.Debug().Msg("Database schema ensured")
	return nil
}

func (p *Postgres) GetStopByID(ctx context.Context, id int64) (*models.Stop, error) {
	q := `SELECT ` + stopColumns + ` FROM stops WHERE stop_id = $1`
	var s models.Stop
	err := p.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.City)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stop %d: %w", id, err)
	}
	return &s, nil
}

// ListStopsByCity matches city case-insensitively. Callers trim input.
func (p *Postgres) ListStopsByCity(ctx context.Context, city string) ([]models.Stop, error) {
	q := `SELECT ` + stopColumns + ` FROM stops WHERE lower(ville) = lower($1) ORDER BY stop_id`
	return p.queryStops(ctx, q, city)
}

func (p *Postgres) ListAllStops(ctx context.Context) ([]models.Stop, error) {
	q := `SELECT ` + stopColumns + ` FROM stops ORDER BY stop_id`
	return p.queryStops(ctx, q)
}

// NearestStopsNative ranks stops server side with the same haversine model
// as the geo package.
func (p *Postgres) NearestStopsNative(ctx context.Context, lat, lon float64, limit int) ([]models.Stop, error) {
	if limit <= 0 {
		limit = 1
	}
	q := `
SELECT ` + stopColumns + `
FROM stops
ORDER BY 2 * 6371 * asin(sqrt(
           power(sin(radians(latitude - $1) / 2), 2) +
           cos(radians($1)) * cos(radians(latitude)) *
           power(sin(radians(longitude - $2) / 2), 2))),
         stop_id
LIMIT $3`
	return p.queryStops(ctx, q, lat, lon, limit)
}

func (p *Postgres) queryStops(ctx context.Context, q string, args ...any) ([]models.Stop, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	stops := make([]models.Stop, 0)
	for rows.Next() {
		var s models.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.City); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func (p *Postgres) ListPositionsSince(ctx context.Context, since time.Time) ([]models.BusPosition, error) {
	q := `SELECT ` + positionColumns + ` FROM bus_positions WHERE timestamp >= $1 ORDER BY id`
	return p.queryPositions(ctx, q, since)
}

func (p *Postgres) ListPositionsBefore(ctx context.Context, before time.Time) ([]models.BusPosition, error) {
	q := `SELECT ` + positionColumns + ` FROM bus_positions WHERE timestamp < $1 ORDER BY id`
	return p.queryPositions(ctx, q, before)
}

func (p *Postgres) ListPositionsByLineSince(ctx context.Context, line string, since time.Time) ([]models.BusPosition, error) {
	q := `SELECT ` + positionColumns + ` FROM bus_positions
WHERE ligne = $1 AND timestamp >= $2
ORDER BY timestamp DESC, id DESC`
	return p.queryPositions(ctx, q, line, since)
}

func (p *Postgres) ListAllPositions(ctx context.Context) ([]models.BusPosition, error) {
	q := `SELECT ` + positionColumns + ` FROM bus_positions ORDER BY id`
	return p.queryPositions(ctx, q)
}

func (p *Postgres) LatestPositionForBus(ctx context.Context, busID string) (*models.BusPosition, error) {
	q := `SELECT ` + positionColumns + ` FROM bus_positions
WHERE bus_id = $1
ORDER BY timestamp DESC, id DESC
LIMIT 1`
	var bp models.BusPosition
	err := p.db.QueryRowContext(ctx, q, busID).Scan(&bp.ID, &bp.BusID, &bp.Latitude, &bp.Longitude, &bp.Line, &bp.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest position for %s: %w", busID, err)
	}
	return &bp, nil
}

func (p *Postgres) queryPositions(ctx context.Context, q string, args ...any) ([]models.BusPosition, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query bus_positions: %w", err)
	}
	defer rows.Close()

	positions := make([]models.BusPosition, 0)
	for rows.Next() {
		var bp models.BusPosition
		if err := rows.Scan(&bp.ID, &bp.BusID, &bp.Latitude, &bp.Longitude, &bp.Line, &bp.Timestamp); err != nil {
			return nil, err
		}
		positions = append(positions, bp)
	}
	return positions, rows.Err()
}

func (p *Postgres) InsertPosition(ctx context.Context, bp models.BusPosition) (models.BusPosition, error) {
	q := `INSERT INTO bus_positions (bus_id, latitude, longitude, ligne, timestamp)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	if err := p.db.QueryRowContext(ctx, q, bp.BusID, bp.Latitude, bp.Longitude, bp.Line, bp.Timestamp).Scan(&bp.ID); err != nil {
		return models.BusPosition{}, fmt.Errorf("insert bus_position: %w", err)
	}
	return bp, nil
}

func (p *Postgres) DeletePositions(ctx context.Context, ids []int64) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		if _, err := p.db.ExecContext(ctx, `DELETE FROM bus_positions WHERE id = ANY($1)`, ids[start:end]); err != nil {
			return fmt.Errorf("delete bus_positions: %w", err)
		}
	}
	return nil
}

func (p *Postgres) CountPositions(ctx context.Context) (int64, error) {
	var n int64
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM bus_positions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bus_positions: %w", err)
	}
	return n, nil
}

// SeedStop inserts a stop row. Stops are reference data managed outside the
// service; this exists for the migrate command and local setups.
func (p *Postgres) SeedStop(ctx context.Context, s models.Stop) (models.Stop, error) {
	q := `INSERT INTO stops (stop_name, latitude, longitude, ville) VALUES ($1, $2, $3, $4) RETURNING stop_id`
	if err := p.db.QueryRowContext(ctx, q, s.Name, s.Latitude, s.Longitude, s.City).Scan(&s.ID); err != nil {
		return models.Stop{}, fmt.Errorf("insert stop: %w", err)
	}
	return s.Bare(), nil
}
