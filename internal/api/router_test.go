package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpose-triage/internal/api/handlers"
	apimiddleware "xpose-triage/internal/api/middleware"
	"xpose-triage/internal/config"
	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/domain/services"
	"xpose-triage/pkg/logger"
)

const testSecret = "router-test-secret"

type fakeTriage struct {
	resp   *models.SubmissionResponse
	err    error
	status *models.StatusView
}

func (f *fakeTriage) Submit(_ context.Context, req *models.SubmissionRequest) (*models.SubmissionResponse, error) {
	if err := services.ValidateSubmission(req, 0); err != nil {
		return nil, err
	}
	return f.resp, f.err
}

func (f *fakeTriage) Status(_ context.Context, id string) (*models.StatusView, error) {
	if f.status == nil || f.status.TrackingID != id {
		return nil, models.ErrNotFound
	}
	return f.status, nil
}

type fakeReports struct{}

func (fakeReports) GetByID(context.Context, string) (*models.Report, error) {
	return nil, models.ErrNotFound
}

type fakeReviewer struct {
	err   error
	calls int
	last  *models.AdminReviewUpdate
}

func (f *fakeReviewer) UpdateAdminStatus(_ context.Context, upd *models.AdminReviewUpdate) (*models.Report, error) {
	f.calls++
	f.last = upd
	if f.err != nil {
		return nil, f.err
	}
	return &models.Report{ID: upd.ReportID, AdminStatus: upd.Status, Version: 2}, nil
}

func (f *fakeReviewer) UpdatePoliceStatus(_ context.Context, upd *models.PoliceReviewUpdate) (*models.Report, error) {
	f.calls++
	return &models.Report{ID: upd.ReportID, PoliceStatus: upd.Status}, f.err
}

func (f *fakeReviewer) AppendActionProof(_ context.Context, id, _ string, _ *int64) (*models.Report, error) {
	f.calls++
	return &models.Report{ID: id}, f.err
}

type fakeAssigner struct {
	districts *services.DistrictIndex
	autoErr   error
}

func (f *fakeAssigner) AutoAssign(_ context.Context, id string) (*models.AssignmentResult, error) {
	if f.autoErr != nil {
		return nil, f.autoErr
	}
	return &models.AssignmentResult{ReportID: id, OfficerID: 7, StationName: "Central"}, nil
}

func (f *fakeAssigner) AssignOfficer(_ context.Context, id string, officerID int64) (*models.AssignmentResult, error) {
	return &models.AssignmentResult{ReportID: id, OfficerID: officerID}, nil
}

func (f *fakeAssigner) StationsNearDistrict(context.Context, string, string) ([]models.Place, error) {
	return []models.Place{{Name: "Central"}}, nil
}

func (f *fakeAssigner) Districts() *services.DistrictIndex { return f.districts }

type testEnv struct {
	triage   *fakeTriage
	reviewer *fakeReviewer
	assigner *fakeAssigner
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		triage:   &fakeTriage{},
		reviewer: &fakeReviewer{},
		assigner: &fakeAssigner{districts: services.NewDistrictIndex([]models.District{
			{State: "delhi", Name: "new delhi", Latitude: 28.61, Longitude: 77.21},
			{State: "Maharashtra", Name: "Pune", Latitude: 18.52, Longitude: 73.86},
		})},
	}

	h := handlers.NewHandlers(handlers.Dependencies{
		Triage:   env.triage,
		Reports:  fakeReports{},
		Review:   env.reviewer,
		Assigner: env.assigner,
		Version:  "test",
		Logger:   logger.Nop(),
	})

	cfg := config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.Server.RequestTimeout = 5 * time.Second

	env.handler = NewRouter(cfg, h, nil, nil, logger.Nop()).Setup()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func staffToken(t *testing.T, role string) string {
	t.Helper()
	claims := apimiddleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "11",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

const validSubmission = `{
	"category_id": 2,
	"description": "Two men snatched my phone near the market gate",
	"place": "Sadar Bazaar",
	"police_station": "Sadar Bazaar PS"
}`

func TestRouter_Submit(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/v1/reports", `{`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failure lists fields", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/v1/reports", `{"description":"short"}`, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body handlers.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, handlers.CodeValidation, body.Code)
		assert.Contains(t, body.Fields, "category_id")
		assert.Contains(t, body.Fields, "description")
	})

	t.Run("accepted", func(t *testing.T) {
		env := newTestEnv(t)
		env.triage.resp = &models.SubmissionResponse{
			Success:    true,
			TrackingID: "Xpose-AAAA-BBBB-CCCC-DDDD-0",
			Status:     models.StatusReceivedStandard,
		}
		rec := env.do(t, http.MethodPost, "/api/v1/reports", validSubmission, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body models.SubmissionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Nil(t, body.BlockchainHash)
	})

	t.Run("pipeline error asks for retry", func(t *testing.T) {
		env := newTestEnv(t)
		env.triage.resp = &models.SubmissionResponse{Status: models.StatusError, RequiresRetry: true}
		rec := env.do(t, http.MethodPost, "/api/v1/reports", validSubmission, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRouter_Status(t *testing.T) {
	env := newTestEnv(t)
	env.triage.status = &models.StatusView{TrackingID: "Xpose-AAAA", Status: models.OutcomeAccepted}

	rec := env.do(t, http.MethodGet, "/api/v1/reports/Xpose-AAAA/status", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/reports/unknown/status", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, handlers.CodeNotFound, body.Code)
}

func TestRouter_AdminStatus(t *testing.T) {
	t.Run("requires a token", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPut, "/api/v1/reports/R1/admin-status", `{"admin_status":"APPROVED"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, env.reviewer.calls)
	})

	t.Run("any verified token may transition", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPut, "/api/v1/reports/R1/admin-status", `{"admin_status":"APPROVED"}`, staffToken(t, apimiddleware.RolePolice))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPut, "/api/v1/reports/R1/admin-status", `{"admin_status":"APPROVED"}`, staffToken(t, apimiddleware.RoleAdmin)+"x")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, env.reviewer.calls)
	})

	t.Run("reviewer is taken from the token", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPut, "/api/v1/reports/R1/admin-status", `{"admin_status":"APPROVED"}`, staffToken(t, apimiddleware.RoleAdmin))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, env.reviewer.last.ReviewedByID)
		assert.Equal(t, int64(11), *env.reviewer.last.ReviewedByID)
		assert.Equal(t, "R1", env.reviewer.last.ReportID)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		env.reviewer.err = models.ErrVersionConflict
		rec := env.do(t, http.MethodPut, "/api/v1/reports/R1/admin-status", `{"admin_status":"APPROVED","expected_version":1}`, staffToken(t, apimiddleware.RoleAdmin))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRouter_AutoAssignErrors(t *testing.T) {
	tests := []struct {
		kind models.AssignmentErrorKind
		want int
	}{
		{models.AssignmentMissingCoordinates, http.StatusUnprocessableEntity},
		{models.AssignmentNoStations, http.StatusNotFound},
		{models.AssignmentNoOfficers, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv(t)
			env.assigner.autoErr = models.NewAssignmentError(tt.kind, "")
			rec := env.do(t, http.MethodPost, "/api/v1/reports/R1/assign/auto", "", staffToken(t, apimiddleware.RoleAdmin))
			require.Equal(t, tt.want, rec.Code)

			var body handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tt.kind), body.Code)
		})
	}
}

func TestRouter_Districts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/districts/states", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var states []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	assert.Equal(t, []string{"Delhi", "Maharashtra"}, states)

	rec = env.do(t, http.MethodGet, "/api/v1/districts/nearest?lat=28.6&lng=77.2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var nearest handlers.NearestDistrictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nearest))
	assert.Equal(t, "new delhi", nearest.Name)

	rec = env.do(t, http.MethodGet, "/api/v1/districts/nearest?lat=abc&lng=1", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
