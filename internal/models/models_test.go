package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTransactionStatus_Transitions(t *testing.T) {
	require.True(t, TransactionPending.CanTransitionTo(TransactionSending))
	require.True(t, TransactionSending.CanTransitionTo(TransactionSent))
	require.True(t, TransactionSent.CanTransitionTo(TransactionSuccess))
	require.True(t, TransactionSent.CanTransitionTo(TransactionError))
	require.True(t, TransactionError.CanTransitionTo(TransactionPending))

	require.False(t, TransactionSuccess.CanTransitionTo(TransactionPending))
	require.False(t, TransactionCancelled.CanTransitionTo(TransactionPending))
	require.False(t, TransactionSent.CanTransitionTo(TransactionPending))
	require.False(t, TransactionSending.CanTransitionTo(TransactionPending))

	require.ErrorIs(t, CheckTransition(TransactionSuccess, TransactionError), ErrInvalidTransition)
	require.NoError(t, CheckTransition(TransactionPending, TransactionSending))

	require.True(t, TransactionSuccess.Terminal())
	require.True(t, TransactionCancelled.Terminal())
	require.False(t, TransactionError.Terminal())
}

func TestWebserviceType(t *testing.T) {
	for _, wt := range AllWebserviceTypes() {
		require.True(t, wt.Valid())
		require.NotEmpty(t, wt.Prefix())
	}
	require.Equal(t, CountryParaguay, WebserviceParaguayCustoms.Country())
	require.Equal(t, CountryArgentina, WebserviceMicDta.Country())

	_, err := ParseWebserviceType("nope")
	require.ErrorIs(t, err, ErrUnknownWebserviceType)

	c, ok := ParseCountry("argentina")
	require.True(t, ok)
	require.Equal(t, CountryArgentina, c)
	require.Equal(t, []WebserviceType{WebserviceAnticipada, WebserviceMicDta}, WebserviceTypesFor(CountryArgentina))
}

func TestTrack_EffectiveStatus(t *testing.T) {
	now := time.Now().UTC()
	fresh := &WebserviceTrack{Status: TrackGenerated, GeneratedAt: now.Add(-23 * time.Hour)}
	stale := &WebserviceTrack{Status: TrackGenerated, GeneratedAt: now.Add(-25 * time.Hour)}
	used := &WebserviceTrack{Status: TrackUsedInMicDta, GeneratedAt: now.Add(-48 * time.Hour)}

	require.Equal(t, TrackGenerated, fresh.EffectiveStatus(now, DefaultTrackFreshness))
	require.Equal(t, TrackExpired, stale.EffectiveStatus(now, DefaultTrackFreshness))
	require.Equal(t, TrackUsedInMicDta, used.EffectiveStatus(now, DefaultTrackFreshness))
	require.False(t, used.Fresh(now, DefaultTrackFreshness))
}

func TestShipment_Helpers(t *testing.T) {
	s := &Shipment{
		BillsOfLading: []BillOfLading{
			{GrossWeightKg: decimal.NewFromInt(100), Containers: []Container{{Number: "A", Empty: true}, {Number: "B"}}},
			{GrossWeightKg: decimal.RequireFromString("20.5"), Containers: []Container{{Number: "C", Empty: true}}},
		},
	}
	empties := s.EmptyContainers()
	require.Len(t, empties, 2)
	require.Equal(t, "C", empties[1].Number)
	require.Equal(t, "120.5", s.TotalGrossWeight().String())

	s.GrossWeightKg = decimal.NewFromInt(7)
	require.Equal(t, "7", s.TotalGrossWeight().String())
}

func TestTransaction_Timeout(t *testing.T) {
	require.Equal(t, 60*time.Second, (&WebserviceTransaction{}).Timeout())
	require.Equal(t, 5*time.Second, (&WebserviceTransaction{TimeoutSeconds: 5}).Timeout())
}
