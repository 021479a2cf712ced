package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/metrics"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

const (
	defaultSearchRadius = 20000
	defaultPlaceType    = "police"
)

// AssignmentConfig tunes station search
type AssignmentConfig struct {
	RadiusMeters int
	PlaceType    string
}

// AssignmentEngine routes accepted reports to an officer at the nearest station
type AssignmentEngine struct {
	store     ReportStore
	stations  StationDirectory
	places    PlacesSearcher
	districts *DistrictIndex
	events    EventPublisher
	metrics   *metrics.Metrics
	config    AssignmentConfig
	logger    *logger.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

// NewAssignmentEngine creates an assignment engine. districts, events and m
// may be nil.
func NewAssignmentEngine(
	store ReportStore,
	stations StationDirectory,
	places PlacesSearcher,
	districts *DistrictIndex,
	events EventPublisher,
	m *metrics.Metrics,
	cfg AssignmentConfig,
	log *logger.Logger,
) *AssignmentEngine {
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = defaultSearchRadius
	}
	if cfg.PlaceType == "" {
		cfg.PlaceType = defaultPlaceType
	}
	if districts == nil {
		districts = NewDistrictIndex(nil)
	}
	seed := uint64(time.Now().UnixNano())
	return &AssignmentEngine{
		store:     store,
		stations:  stations,
		places:    places,
		districts: districts,
		events:    events,
		metrics:   m,
		config:    cfg,
		logger:    log.WithComponent("assignment"),
		rand:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SetRand replaces the officer picker's random source
func (a *AssignmentEngine) SetRand(r *rand.Rand) {
	a.mu.Lock()
	a.rand = r
	a.mu.Unlock()
}

// Districts returns the district index
func (a *AssignmentEngine) Districts() *DistrictIndex {
	return a.districts
}

// AutoAssign assigns a random officer from the station nearest to the
// report. A failure leaves the report untouched.
func (a *AssignmentEngine) AutoAssign(ctx context.Context, reportID string) (*models.AssignmentResult, error) {
	report, err := a.loadAssignable(ctx, reportID)
	if err != nil {
		return nil, err
	}
	log := a.logger.WithReportID(reportID)

	if !report.Location.HasCoordinates() {
		a.metrics.AssignmentResult(string(models.AssignmentMissingCoordinates))
		return nil, models.NewAssignmentError(models.AssignmentMissingCoordinates, "report has no latitude/longitude")
	}

	places, err := a.places.NearbySearch(ctx, *report.Location.Latitude, *report.Location.Longitude, a.config.RadiusMeters, a.config.PlaceType)
	if err != nil {
		a.metrics.CollaboratorFailed("places")
		return nil, &models.ExternalServiceError{Service: "places", Err: err}
	}
	if len(places) == 0 {
		a.metrics.AssignmentResult(string(models.AssignmentNoStations))
		return nil, models.NewAssignmentError(models.AssignmentNoStations,
			fmt.Sprintf("no stations within %dm", a.config.RadiusMeters))
	}

	station, err := a.stations.FindOrCreateByName(ctx, places[0])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve station: %w", err)
	}

	officers, err := a.stations.ListOfficersByStation(ctx, station.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list officers: %w", err)
	}
	if len(officers) == 0 {
		a.metrics.AssignmentResult(string(models.AssignmentNoOfficers))
		return nil, models.NewAssignmentError(models.AssignmentNoOfficers, station.Name)
	}

	officer := officers[a.pick(len(officers))]
	result, err := a.assign(ctx, reportID, officer, station.Name)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("officer_id", officer.ID).
		Str("station", station.Name).
		Msg("report auto-assigned")
	return result, nil
}

// AssignOfficer assigns a specific officer, recording their station name
func (a *AssignmentEngine) AssignOfficer(ctx context.Context, reportID string, officerID int64) (*models.AssignmentResult, error) {
	if _, err := a.loadAssignable(ctx, reportID); err != nil {
		return nil, err
	}

	officer, err := a.stations.GetOfficer(ctx, officerID)
	if err != nil {
		return nil, err
	}

	var stationName string
	station, err := a.stations.GetStation(ctx, officer.StationID)
	switch {
	case err == nil:
		stationName = station.Name
	case errors.Is(err, models.ErrNotFound):
		a.logger.Warn().Int64("station_id", officer.StationID).Msg("officer has no known station")
	default:
		return nil, fmt.Errorf("failed to load station: %w", err)
	}

	result, err := a.assign(ctx, reportID, *officer, stationName)
	if err != nil {
		return nil, err
	}
	result.StationID = officer.StationID

	a.logger.WithReportID(reportID).Info().Int64("officer_id", officerID).Msg("report assigned")
	return result, nil
}

// loadAssignable returns the report if it was accepted. Rejected reports
// never get an officer.
func (a *AssignmentEngine) loadAssignable(ctx context.Context, reportID string) (*models.Report, error) {
	report, err := a.store.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.OutcomeAccepted {
		return nil, fmt.Errorf("report is %s: %w", report.Status, models.ErrInvalidTransition)
	}
	return report, nil
}

func (a *AssignmentEngine) assign(ctx context.Context, reportID string, officer models.Officer, stationName string) (*models.AssignmentResult, error) {
	if _, err := a.store.UpdateAssignment(ctx, reportID, officer.ID, stationName); err != nil {
		return nil, fmt.Errorf("failed to store assignment: %w", err)
	}
	a.metrics.AssignmentResult("assigned")

	if a.events != nil {
		ev := streaming.NewReportEvent(streaming.EventReportAssigned, reportID)
		id := officer.ID
		ev.OfficerID = &id
		ev.StationName = stationName
		if err := a.events.PublishReportEvent(ctx, ev); err != nil {
			a.logger.Debug().Err(err).Msg("failed to publish assignment event")
		}
	}

	return &models.AssignmentResult{
		ReportID:    reportID,
		OfficerID:   officer.ID,
		OfficerName: officer.Name,
		StationID:   officer.StationID,
		StationName: stationName,
	}, nil
}

func (a *AssignmentEngine) pick(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rand.IntN(n)
}

// StationsNearDistrict lists stations around a district centroid
func (a *AssignmentEngine) StationsNearDistrict(ctx context.Context, state, district string) ([]models.Place, error) {
	d, err := a.districts.Lookup(state, district)
	if err != nil {
		return nil, err
	}

	places, err := a.places.NearbySearch(ctx, d.Latitude, d.Longitude, a.config.RadiusMeters, a.config.PlaceType)
	if err != nil {
		a.metrics.CollaboratorFailed("places")
		return nil, &models.ExternalServiceError{Service: "places", Err: err}
	}
	return places, nil
}
