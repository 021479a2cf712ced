package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/streaming"
)

// fakeNormalizer counts every call. An empty translated or readable value
// echoes the input.
type fakeNormalizer struct {
	english    bool
	translated string
	readable   string
	language   string

	isEnglishCalls   int
	translateCalls   int
	readabilityCalls int
}

func (f *fakeNormalizer) IsEnglish(context.Context, string) bool {
	f.isEnglishCalls++
	return f.english
}

func (f *fakeNormalizer) Translate(_ context.Context, text string) string {
	f.translateCalls++
	if f.translated == "" {
		return text
	}
	return f.translated
}

func (f *fakeNormalizer) ImproveReadability(_ context.Context, text string) string {
	f.readabilityCalls++
	if f.readable == "" {
		return text
	}
	return f.readable
}

func (f *fakeNormalizer) DetectLanguage(context.Context, string) string {
	return f.language
}

func (f *fakeNormalizer) calls() int {
	return f.isEnglishCalls + f.translateCalls + f.readabilityCalls
}

// fakeClassifier returns results in order, repeating the last one
type fakeClassifier struct {
	results []*models.Classification
	err     error
	texts   []string
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (*models.Classification, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.texts) - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i].Clone(), nil
}

func (f *fakeClassifier) calls() int { return len(f.texts) }

// memStore is an in-memory ReportStore with the same CAS rules as the
// Postgres repository
type memStore struct {
	mu        sync.Mutex
	reports   map[string]*models.Report
	createErr []error // consumed one per Create call
	creates   int
	exists    int
	updates   int
	beforeCAS func(id string) // runs before every versioned update
}

func newMemStore() *memStore {
	return &memStore{reports: make(map[string]*models.Report)}
}

func (s *memStore) put(r *models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Version == 0 {
		r.Version = 1
	}
	s.reports[r.ID] = cloneReport(r)
}

func (s *memStore) get(id string) *models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reports[id]; ok {
		return cloneReport(r)
	}
	return nil
}

func (s *memStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists++
	_, ok := s.reports[id]
	return ok, nil
}

func (s *memStore) Create(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if len(s.createErr) > 0 {
		err := s.createErr[0]
		s.createErr = s.createErr[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := s.reports[r.ID]; ok {
		return models.ErrDuplicateID
	}
	r.Version = 1
	s.reports[r.ID] = cloneReport(r)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*models.Report, error) {
	if r := s.get(id); r != nil {
		return r, nil
	}
	return nil, models.ErrNotFound
}

func (s *memStore) UpdateLedgerProof(_ context.Context, id string, proof models.LedgerProof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Ledger = proof
	return nil
}

func (s *memStore) UpdateAssignment(_ context.Context, id string, officerID int64, stationName string) (*models.Report, error) {
	return s.cas(id, nil, func(r *models.Report) {
		r.AssignedOfficerID = &officerID
		r.AssignedStationName = &stationName
		r.AdminStatus = models.AdminStatusAssigned
	})
}

func (s *memStore) UpdateAdminReview(_ context.Context, upd *models.AdminReviewUpdate) (*models.Report, error) {
	return s.cas(upd.ReportID, upd.ExpectedVersion, func(r *models.Report) {
		r.AdminStatus = upd.Status
		r.ReviewedByID = upd.ReviewedByID
		now := time.Now().UTC()
		r.ReviewedAt = &now
	})
}

func (s *memStore) UpdatePoliceReview(_ context.Context, upd *models.PoliceReviewUpdate) (*models.Report, error) {
	return s.cas(upd.ReportID, upd.ExpectedVersion, func(r *models.Report) {
		r.PoliceStatus = upd.Status
		if upd.Feedback != nil {
			r.PoliceFeedback = upd.Feedback
		}
		if upd.ActionProof != "" {
			r.PoliceActionProof = append(r.PoliceActionProof, upd.ActionProof)
		}
	})
}

func (s *memStore) AppendActionProof(_ context.Context, id, proof string, expected *int64) (*models.Report, error) {
	return s.cas(id, expected, func(r *models.Report) {
		r.PoliceActionProof = append(r.PoliceActionProof, proof)
	})
}

func (s *memStore) cas(id string, expected *int64, apply func(*models.Report)) (*models.Report, error) {
	if s.beforeCAS != nil {
		s.beforeCAS(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	r, ok := s.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if expected != nil && *expected != r.Version {
		return nil, models.ErrVersionConflict
	}
	apply(r)
	r.Version++
	return cloneReport(r), nil
}

// bump simulates a concurrent writer
func (s *memStore) bump(id string, apply func(*models.Report)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[id]
	if apply != nil {
		apply(r)
	}
	r.Version++
}

func cloneReport(r *models.Report) *models.Report {
	out := *r
	out.Classification = *r.Classification.Clone()
	out.PoliceActionProof = append([]string(nil), r.PoliceActionProof...)
	return &out
}

type fakeLedger struct {
	hash  string
	err   error
	calls int
}

func (f *fakeLedger) Anchor(_ context.Context, p *models.LedgerPayload) (*models.LedgerProof, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	hash := f.hash
	return &models.LedgerProof{Hash: &hash}, nil
}

type fakeRetryQueue struct {
	ids []string
}

func (f *fakeRetryQueue) EnqueueAnchor(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []*streaming.ReportEvent
}

func (r *recordingEvents) PublishReportEvent(_ context.Context, ev *streaming.ReportEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() []streaming.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]streaming.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeStations struct {
	officers map[int64][]models.Officer
	stations map[string]*models.Station
	nextID   int64
	lookups  int
}

func newFakeStations() *fakeStations {
	return &fakeStations{
		officers: make(map[int64][]models.Officer),
		stations: make(map[string]*models.Station),
	}
}

func (f *fakeStations) FindOrCreateByName(_ context.Context, p models.Place) (*models.Station, error) {
	f.lookups++
	if s, ok := f.stations[p.Name]; ok {
		return s, nil
	}
	f.nextID++
	s := &models.Station{ID: f.nextID, Name: p.Name, Address: p.Address, Latitude: p.Latitude, Longitude: p.Longitude}
	f.stations[p.Name] = s
	return s, nil
}

func (f *fakeStations) ListOfficersByStation(_ context.Context, id int64) ([]models.Officer, error) {
	return f.officers[id], nil
}

func (f *fakeStations) GetOfficer(_ context.Context, id int64) (*models.Officer, error) {
	for _, list := range f.officers {
		for _, o := range list {
			if o.ID == id {
				o := o
				return &o, nil
			}
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStations) GetStation(_ context.Context, id int64) (*models.Station, error) {
	for _, s := range f.stations {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

type fakePlaces struct {
	places []models.Place
	err    error
	calls  int
	radius int
}

func (f *fakePlaces) NearbySearch(_ context.Context, _, _ float64, radius int, _ string) ([]models.Place, error) {
	f.calls++
	f.radius = radius
	return f.places, f.err
}

var errUpstream = errors.New("upstream unavailable")

func clean(urgency models.Urgency) *models.Classification {
	return &models.Classification{
		Urgency:       urgency,
		Confidence:    0.9,
		ReportQuality: models.QualityHigh,
		WordCount:     16,
	}
}

func ptr[T any](v T) *T { return &v }
