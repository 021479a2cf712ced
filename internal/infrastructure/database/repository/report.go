package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/infrastructure/database"
)

const reportColumns = `
	id, category_id, crime_type_id, crime_type,
	original_description, translated_description, readability_enhanced_description, language_detected,
	attachments, latitude, longitude, address, city, state, country, police_station,
	classification,
	status, processing_phase, rejection_phase, rejection_reason,
	blockchain_hash, blockchain_tx_id, blockchain_timestamp,
	assigned_officer_id, assigned_station_name,
	admin_status, police_status, police_feedback, police_action_proof, reviewed_by_id, reviewed_at,
	version, submitted_at, updated_at`

// ReportRepository persists reports
type ReportRepository struct {
	db database.DBTX
}

// NewReportRepository creates a report repository
func NewReportRepository(db database.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Exists reports whether a tracking ID is taken
func (r *ReportRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check report id: %w", err)
	}
	return exists, nil
}

// Create inserts a new report. A taken ID returns models.ErrDuplicateID.
func (r *ReportRepository) Create(ctx context.Context, rep *models.Report) error {
	classification, err := json.Marshal(&rep.Classification)
	if err != nil {
		return fmt.Errorf("failed to encode classification: %w", err)
	}

	now := time.Now().UTC()
	if rep.SubmittedAt.IsZero() {
		rep.SubmittedAt = now
	}
	rep.UpdatedAt = now
	rep.Version = 1

	c := &rep.Classification
	query := `
		INSERT INTO reports (
			id, category_id, crime_type_id, crime_type,
			original_description, translated_description, readability_enhanced_description, language_detected,
			attachments, latitude, longitude, address, city, state, country, police_station,
			is_spam, is_toxic, is_hate_speech, needs_review, urgency, report_quality, confidence, spam_score,
			classification,
			status, processing_phase, rejection_phase, rejection_reason,
			admin_status, police_status, police_action_proof,
			version, submitted_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35
		)`

	_, err = r.db.Exec(ctx, query,
		rep.ID, rep.CategoryID, ptrToInt8(rep.CrimeTypeID), textOrNull(rep.CrimeType),
		rep.OriginalDescription, textOrNull(rep.TranslatedDescription), textOrNull(rep.ReadabilityEnhancedDescription), textOrNull(rep.LanguageDetected),
		nonNilStrings(rep.Attachments), ptrToFloat8(rep.Location.Latitude), ptrToFloat8(rep.Location.Longitude),
		textOrNull(rep.Location.Address), textOrNull(rep.Location.City), textOrNull(rep.Location.State), textOrNull(rep.Location.Country),
		textOrNull(rep.PoliceStation),
		c.IsSpam, c.IsToxic, c.IsHateSpeech, c.NeedsReview, string(c.Urgency), string(c.ReportQuality), c.Confidence, c.SpamScore,
		classification,
		string(rep.Status), string(rep.ProcessingPhase), textOrNull(string(rep.RejectionPhase)), ptrToText(rep.RejectionReason),
		string(rep.AdminStatus), string(rep.PoliceStatus), nonNilStrings(rep.PoliceActionProof),
		rep.Version, rep.SubmittedAt, rep.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateID
		}
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetByID returns models.ErrNotFound for unknown IDs
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	return scanReport(r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
}

// ListUnanchored returns accepted reports without a ledger proof, oldest first
func (r *ReportRepository) ListUnanchored(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM reports
		WHERE blockchain_hash IS NULL AND status = 'ACCEPTED'
		ORDER BY submitted_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unanchored reports: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan report ids: %w", err)
	}
	return ids, nil
}

// UpdateLedgerProof back-fills the ledger receipt
func (r *ReportRepository) UpdateLedgerProof(ctx context.Context, id string, proof models.LedgerProof) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE reports
		SET blockchain_hash = $2, blockchain_tx_id = $3, blockchain_timestamp = $4, updated_at = NOW()
		WHERE id = $1`,
		id, ptrToText(proof.Hash), ptrToText(proof.TxID), timeToTimestamptzPtr(proof.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger proof: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateAssignment stores the assigned officer and station
func (r *ReportRepository) UpdateAssignment(ctx context.Context, id string, officerID int64, stationName string) (*models.Report, error) {
	return scanReport(r.db.QueryRow(ctx, `
		UPDATE reports
		SET assigned_officer_id = $2, assigned_station_name = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING `+reportColumns,
		id, officerID, textOrNull(stationName),
	))
}

// UpdateAdminReview applies an admin decision guarded by the expected version
func (r *ReportRepository) UpdateAdminReview(ctx context.Context, upd *models.AdminReviewUpdate) (*models.Report, error) {
	rep, err := scanReport(r.db.QueryRow(ctx, `
		UPDATE reports
		SET admin_status = $2,
			reviewed_by_id = COALESCE($3, reviewed_by_id),
			reviewed_at = NOW(),
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($4::BIGINT IS NULL OR version = $4)
		RETURNING `+reportColumns,
		upd.ReportID, string(upd.Status), ptrToInt8(upd.ReviewedByID), ptrToInt8(upd.ExpectedVersion),
	))
	return r.casResult(ctx, upd.ReportID, rep, err)
}

// UpdatePoliceReview applies a police status change guarded by the expected
// version. A non-empty ActionProof is appended to the proof list.
func (r *ReportRepository) UpdatePoliceReview(ctx context.Context, upd *models.PoliceReviewUpdate) (*models.Report, error) {
	rep, err := scanReport(r.db.QueryRow(ctx, `
		UPDATE reports
		SET police_status = $2,
			police_feedback = COALESCE($3, police_feedback),
			police_action_proof = CASE WHEN $4::TEXT = '' THEN police_action_proof
				ELSE array_append(police_action_proof, $4::TEXT) END,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($5::BIGINT IS NULL OR version = $5)
		RETURNING `+reportColumns,
		upd.ReportID, string(upd.Status), ptrToText(upd.Feedback), upd.ActionProof, ptrToInt8(upd.ExpectedVersion),
	))
	return r.casResult(ctx, upd.ReportID, rep, err)
}

// AppendActionProof adds a proof file reference
func (r *ReportRepository) AppendActionProof(ctx context.Context, id, proof string, expectedVersion *int64) (*models.Report, error) {
	rep, err := scanReport(r.db.QueryRow(ctx, `
		UPDATE reports
		SET police_action_proof = array_append(police_action_proof, $2),
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($3::BIGINT IS NULL OR version = $3)
		RETURNING `+reportColumns,
		id, proof, ptrToInt8(expectedVersion),
	))
	return r.casResult(ctx, id, rep, err)
}

// casResult tells a lost compare-and-swap apart from a missing report
func (r *ReportRepository) casResult(ctx context.Context, id string, rep *models.Report, err error) (*models.Report, error) {
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	exists, xerr := r.Exists(ctx, id)
	if xerr != nil {
		return nil, xerr
	}
	if exists {
		return nil, models.ErrVersionConflict
	}
	return nil, models.ErrNotFound
}

func scanReport(row pgx.Row) (*models.Report, error) {
	rep := &models.Report{}
	var (
		crimeTypeID                               pgtype.Int8
		crimeType, translated, enhanced, language pgtype.Text
		lat, lng                                  pgtype.Float8
		address, city, state, country, station    pgtype.Text
		classification                            []byte
		status, phase                             string
		rejectionPhase, rejectionReason           pgtype.Text
		hash, txID                                pgtype.Text
		anchoredAt                                pgtype.Timestamptz
		officerID                                 pgtype.Int8
		stationName                               pgtype.Text
		adminStatus, policeStatus                 string
		feedback                                  pgtype.Text
		reviewedBy                                pgtype.Int8
		reviewedAt                                pgtype.Timestamptz
	)

	err := row.Scan(
		&rep.ID, &rep.CategoryID, &crimeTypeID, &crimeType,
		&rep.OriginalDescription, &translated, &enhanced, &language,
		&rep.Attachments, &lat, &lng, &address, &city, &state, &country, &station,
		&classification,
		&status, &phase, &rejectionPhase, &rejectionReason,
		&hash, &txID, &anchoredAt,
		&officerID, &stationName,
		&adminStatus, &policeStatus, &feedback, &rep.PoliceActionProof, &reviewedBy, &reviewedAt,
		&rep.Version, &rep.SubmittedAt, &rep.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	if err := json.Unmarshal(classification, &rep.Classification); err != nil {
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}

	rep.CrimeTypeID = int8Ptr(crimeTypeID)
	rep.CrimeType = nullTextToString(crimeType)
	rep.TranslatedDescription = nullTextToString(translated)
	rep.ReadabilityEnhancedDescription = nullTextToString(enhanced)
	rep.LanguageDetected = nullTextToString(language)
	rep.Location = models.Location{
		Latitude:  float8Ptr(lat),
		Longitude: float8Ptr(lng),
		Address:   nullTextToString(address),
		City:      nullTextToString(city),
		State:     nullTextToString(state),
		Country:   nullTextToString(country),
	}
	rep.PoliceStation = nullTextToString(station)
	rep.Status = models.OutcomeStatus(status)
	rep.ProcessingPhase = models.Phase(phase)
	rep.RejectionPhase = models.DecisionPhase(nullTextToString(rejectionPhase))
	rep.RejectionReason = nullTextToPtr(rejectionReason)
	rep.Ledger = models.LedgerProof{
		Hash:      nullTextToPtr(hash),
		TxID:      nullTextToPtr(txID),
		Timestamp: timestamptzToTimePtr(anchoredAt),
	}
	rep.AssignedOfficerID = int8Ptr(officerID)
	rep.AssignedStationName = nullTextToPtr(stationName)
	rep.AdminStatus = models.AdminStatus(adminStatus)
	rep.PoliceStatus = models.PoliceStatus(policeStatus)
	rep.PoliceFeedback = nullTextToPtr(feedback)
	rep.ReviewedByID = int8Ptr(reviewedBy)
	rep.ReviewedAt = timestamptzToTimePtr(reviewedAt)

	return rep, nil
}
