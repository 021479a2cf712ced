package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpose-triage/internal/domain/models"
	"xpose-triage/internal/streaming"
	"xpose-triage/pkg/logger"
)

func TestReanchor(t *testing.T) {
	t.Run("back-fills the proof", func(t *testing.T) {
		store := newMemStore()
		store.put(&models.Report{ID: "R1", Status: models.OutcomeAccepted})
		ledger := &fakeLedger{hash: "0xfeed"}
		events := &recordingEvents{}
		a := NewLedgerAnchorer(ledger, store, events, nil, nil, 0, logger.Nop())

		require.NoError(t, a.Reanchor(context.Background(), "R1"))

		stored := store.get("R1")
		require.NotNil(t, stored.Ledger.Hash)
		assert.Equal(t, "0xfeed", *stored.Ledger.Hash)
		assert.Equal(t, []streaming.EventType{streaming.EventReportAnchored}, events.types())
	})

	t.Run("already anchored is a no-op", func(t *testing.T) {
		store := newMemStore()
		store.put(&models.Report{ID: "R1", Status: models.OutcomeAccepted, Ledger: models.LedgerProof{Hash: ptr("0xold")}})
		ledger := &fakeLedger{hash: "0xnew"}
		a := NewLedgerAnchorer(ledger, store, nil, nil, nil, 0, logger.Nop())

		require.NoError(t, a.Reanchor(context.Background(), "R1"))
		assert.Zero(t, ledger.calls)
		assert.Equal(t, "0xold", *store.get("R1").Ledger.Hash)
	})

	t.Run("rejected reports are never anchored", func(t *testing.T) {
		store := newMemStore()
		store.put(&models.Report{ID: "R1", Status: models.OutcomeRejected})
		ledger := &fakeLedger{hash: "0xfeed"}
		a := NewLedgerAnchorer(ledger, store, nil, nil, nil, 0, logger.Nop())

		require.NoError(t, a.Reanchor(context.Background(), "R1"))
		assert.Zero(t, ledger.calls)
	})

	t.Run("failure is returned for retry", func(t *testing.T) {
		store := newMemStore()
		store.put(&models.Report{ID: "R1", Status: models.OutcomeAccepted})
		retry := &fakeRetryQueue{}
		a := NewLedgerAnchorer(&fakeLedger{err: errUpstream}, store, nil, retry, nil, 0, logger.Nop())

		assert.ErrorIs(t, a.Reanchor(context.Background(), "R1"), errUpstream)
		assert.Nil(t, store.get("R1").Ledger.Hash)
		assert.Empty(t, retry.ids, "Reanchor leaves retries to its caller")
	})

	t.Run("missing report", func(t *testing.T) {
		a := NewLedgerAnchorer(&fakeLedger{}, newMemStore(), nil, nil, nil, 0, logger.Nop())
		assert.ErrorIs(t, a.Reanchor(context.Background(), "nope"), models.ErrNotFound)
	})
}

func TestAnchorReport_EmptyHashCountsAsFailure(t *testing.T) {
	store := newMemStore()
	report := &models.Report{ID: "R1", Status: models.OutcomeAccepted}
	store.put(report)
	retry := &fakeRetryQueue{}
	events := &recordingEvents{}
	a := NewLedgerAnchorer(&fakeLedger{hash: ""}, store, events, retry, nil, 0, logger.Nop())

	assert.Nil(t, a.AnchorReport(context.Background(), report))
	assert.Equal(t, []string{"R1"}, retry.ids)
	assert.Equal(t, []streaming.EventType{streaming.EventReportAnchorFailed}, events.types())
}
