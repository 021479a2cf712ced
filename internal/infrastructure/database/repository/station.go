package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/infrastructure/database"
)

const stationColumns = `id, name, address, latitude, longitude, created_at`

// StationRepository resolves police stations and their officers
type StationRepository struct {
	db database.DBTX
}

// NewStationRepository creates a station repository
func NewStationRepository(db database.DBTX) *StationRepository {
	return &StationRepository{db: db}
}

// FindOrCreateByName returns the station called place.Name, inserting it
// from the place when it is new. Concurrent callers get the same row.
func (r *StationRepository) FindOrCreateByName(ctx context.Context, place models.Place) (*models.Station, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO police_stations (name, address, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+stationColumns,
		place.Name, textOrNull(place.Address), place.Latitude, place.Longitude,
	)
	s, err := scanStation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert station: %w", err)
	}
	return s, nil
}

// GetStation returns models.ErrNotFound for unknown IDs
func (r *StationRepository) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	return scanStation(r.db.QueryRow(ctx, `SELECT `+stationColumns+` FROM police_stations WHERE id = $1`, id))
}

// ListStations returns every station ordered by name
func (r *StationRepository) ListStations(ctx context.Context) ([]*models.Station, error) {
	rows, err := r.db.Query(ctx, `SELECT `+stationColumns+` FROM police_stations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	var stations []*models.Station
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

// CreateOfficer inserts an officer and fills in its ID
func (r *StationRepository) CreateOfficer(ctx context.Context, o *models.Officer) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO officers (name, email, station_id)
		VALUES ($1, $2, $3)
		RETURNING id`,
		o.Name, textOrNull(o.Email), o.StationID,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("officer %s: %w", o.Email, models.ErrDuplicateID)
		}
		return fmt.Errorf("failed to create officer: %w", err)
	}
	return nil
}

// ListOfficersByStation returns every officer linked to a station
func (r *StationRepository) ListOfficersByStation(ctx context.Context, stationID int64) ([]models.Officer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, station_id
		FROM officers
		WHERE station_id = $1
		ORDER BY id`, stationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list officers: %w", err)
	}
	defer rows.Close()

	var officers []models.Officer
	for rows.Next() {
		o, err := scanOfficer(rows)
		if err != nil {
			return nil, err
		}
		officers = append(officers, *o)
	}
	return officers, rows.Err()
}

// GetOfficer returns models.ErrNotFound for unknown IDs
func (r *StationRepository) GetOfficer(ctx context.Context, id int64) (*models.Officer, error) {
	return scanOfficer(r.db.QueryRow(ctx, `SELECT id, name, email, station_id FROM officers WHERE id = $1`, id))
}

func scanStation(row pgx.Row) (*models.Station, error) {
	s := &models.Station{}
	var address pgtype.Text
	var lat, lng pgtype.Float8

	if err := row.Scan(&s.ID, &s.Name, &address, &lat, &lng, &s.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan station: %w", err)
	}
	s.Address = nullTextToString(address)
	s.Latitude = lat.Float64
	s.Longitude = lng.Float64
	return s, nil
}

func scanOfficer(row pgx.Row) (*models.Officer, error) {
	o := &models.Officer{}
	var email pgtype.Text
	var stationID pgtype.Int8

	if err := row.Scan(&o.ID, &o.Name, &email, &stationID); err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan officer: %w", err)
	}
	o.Email = nullTextToString(email)
	o.StationID = stationID.Int64
	return o, nil
}
