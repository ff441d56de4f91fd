package customs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/pkg/errors"
)

// memStore is an in-memory stand-in for pgcustoms.Storage, including WithTx rollback.
type memStore struct {
	mu        sync.Mutex
	txs       []models.WebserviceTransaction
	tracks    []models.WebserviceTrack
	nextTx    uint64
	nextTrack uint64
	clock     func() time.Time
}

type memTxKey struct{}

func newMemStore() *memStore {
	return &memStore{clock: func() time.Time { return time.Now().UTC() }}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	txs := append([]models.WebserviceTransaction(nil), m.txs...)
	tracks := make([]models.WebserviceTrack, len(m.tracks))
	for i, t := range m.tracks {
		t.ProcessChain = append([]string(nil), t.ProcessChain...)
		tracks[i] = t
	}
	nextTx, nextTrack := m.nextTx, m.nextTrack
	m.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.txs, m.tracks, m.nextTx, m.nextTrack = txs, tracks, nextTx, nextTrack
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) CreateTransaction(_ context.Context, in models.TransactionCreateInput) (*models.WebserviceTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.TransactionID == in.TransactionID {
			return nil, errors.New("duplicate transaction_id")
		}
	}
	m.nextTx++
	now := m.clock()
	t := models.WebserviceTransaction{
		ID:               m.nextTx,
		CompanyID:        in.CompanyID,
		UserID:           in.UserID,
		VoyageID:         in.VoyageID,
		ShipmentID:       in.ShipmentID,
		WebserviceType:   in.WebserviceType,
		WebserviceMethod: in.WebserviceMethod,
		Country:          in.WebserviceType.Country(),
		TransactionID:    in.TransactionID,
		Status:           models.TransactionPending,
		Environment:      in.Environment,
		MaxRetries:       in.MaxRetries,
		TimeoutSeconds:   in.TimeoutSeconds,
		AdditionalData:   copyMap(in.AdditionalData),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.txs = append(m.txs, t)
	return &t, nil
}

func (m *memStore) GetTransactionByTransactionID(_ context.Context, id string) (*models.WebserviceTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.TransactionID == id {
			return &t, nil
		}
	}
	return nil, pgcustoms.ErrNotFound
}

func (m *memStore) UpdateTransaction(_ context.Context, u pgcustoms.TransactionUpdate) (*models.WebserviceTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.txs {
		t := &m.txs[i]
		if t.ID != u.ID {
			continue
		}
		if t.Status != u.From {
			return nil, errors.Wrapf(pgcustoms.ErrStaleState, "transaction %d not in %s", u.ID, u.From)
		}
		t.Status = u.To
		setIf(&t.RequestXML, u.RequestXML)
		setIf(&t.ResponseXML, u.ResponseXML)
		setIf(&t.ExternalReference, u.ExternalReference)
		setIf(&t.ConfirmationNumber, u.ConfirmationNumber)
		if u.ClearError {
			t.ErrorMessage = nil
		} else {
			setIf(&t.ErrorMessage, u.ErrorMessage)
		}
		if u.IncrementRetry {
			t.RetryCount++
		}
		if u.SentAt != nil {
			t.SentAt = u.SentAt
		}
		if u.ResponseAt != nil {
			t.ResponseAt = u.ResponseAt
		}
		if u.CompletedAt != nil {
			t.CompletedAt = u.CompletedAt
		}
		merged := copyMap(t.AdditionalData)
		for k, v := range u.AdditionalData {
			merged[k] = v
		}
		t.AdditionalData = merged
		t.UpdatedAt = m.clock()
		out := *t
		return &out, nil
	}
	return nil, errors.Wrapf(pgcustoms.ErrStaleState, "transaction %d not in %s", u.ID, u.From)
}

func (m *memStore) ListTransactionsByVoyage(_ context.Context, voyageID uint64, limit, offset int) ([]*models.WebserviceTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WebserviceTransaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].VoyageID == voyageID {
			t := m.txs[i]
			out = append(out, &t)
		}
	}
	if offset >= len(out) {
		return []*models.WebserviceTransaction{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) LatestTransactionsByVoyage(_ context.Context, voyageID uint64) ([]*models.WebserviceTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[models.WebserviceType]models.WebserviceTransaction{}
	for _, t := range m.txs {
		if t.VoyageID == voyageID {
			latest[t.WebserviceType] = t
		}
	}
	out := make([]*models.WebserviceTransaction, 0, len(latest))
	for _, t := range latest {
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WebserviceType < out[j].WebserviceType })
	return out, nil
}

func (m *memStore) CreateTracks(_ context.Context, transactionID uint64, method string, generatedAt time.Time, items []models.TrackCreateInput) ([]*models.WebserviceTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.WebserviceTrack, 0, len(items))
	for _, it := range items {
		m.nextTrack++
		t := models.WebserviceTrack{
			ID:                      m.nextTrack,
			WebserviceTransactionID: transactionID,
			ShipmentID:              it.ShipmentID,
			ContainerID:             it.ContainerID,
			BillOfLadingID:          it.BillOfLadingID,
			TrackNumber:             it.TrackNumber,
			TrackType:               it.TrackType,
			WebserviceMethod:        method,
			ReferenceNumber:         it.ReferenceNumber,
			Status:                  models.TrackGenerated,
			GeneratedAt:             generatedAt,
			ProcessChain:            []string{string(models.TrackGenerated)},
			CreatedAt:               m.clock(),
		}
		m.tracks = append(m.tracks, t)
		out = append(out, &t)
	}
	return out, nil
}

func (m *memStore) FindGeneratedTracks(_ context.Context, trackNumbers []string, method string) ([]*models.WebserviceTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, n := range trackNumbers {
		want[n] = true
	}
	var out []*models.WebserviceTrack
	for _, t := range m.tracks {
		if want[t.TrackNumber] && t.Status == models.TrackGenerated && t.WebserviceMethod == method {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

func (m *memStore) MarkTracksUsed(_ context.Context, ids []uint64, usedAt time.Time) ([]*models.WebserviceTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[uint64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.WebserviceTrack
	for i := range m.tracks {
		t := &m.tracks[i]
		if want[t.ID] && t.Status == models.TrackGenerated {
			t.Status = models.TrackUsedInMicDta
			at := usedAt
			t.UsedAt = &at
			t.ProcessChain = append(t.ProcessChain, string(models.TrackUsedInMicDta))
			cp := *t
			out = append(out, &cp)
		}
	}
	if len(out) != len(ids) {
		return nil, errors.Wrapf(pgcustoms.ErrStaleState, "marked %d of %d tracks", len(out), len(ids))
	}
	return out, nil
}

func (m *memStore) CompleteTracks(_ context.Context, trackNumbers []string, completedAt time.Time) ([]*models.WebserviceTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, n := range trackNumbers {
		want[n] = true
	}
	var out []*models.WebserviceTrack
	for i := range m.tracks {
		t := &m.tracks[i]
		if want[t.TrackNumber] && t.Status == models.TrackUsedInMicDta {
			t.Status = models.TrackCompleted
			at := completedAt
			t.CompletedAt = &at
			t.ProcessChain = append(t.ProcessChain, string(models.TrackCompleted))
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListTracksByShipment(_ context.Context, shipmentID uint64) ([]*models.WebserviceTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.WebserviceTrack
	for _, t := range m.tracks {
		if t.ShipmentID != nil && *t.ShipmentID == shipmentID {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

// helpers used by tests

func (m *memStore) seedTrack(number string, generatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTrack++
	m.tracks = append(m.tracks, models.WebserviceTrack{
		ID:               m.nextTrack,
		TrackNumber:      number,
		TrackType:        models.TrackTypeEnvio,
		WebserviceMethod: models.MethodRegistrarTitEnvios,
		Status:           models.TrackGenerated,
		GeneratedAt:      generatedAt,
		ProcessChain:     []string{string(models.TrackGenerated)},
	})
}

func (m *memStore) track(number string) models.WebserviceTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tracks {
		if t.TrackNumber == number {
			return t
		}
	}
	return models.WebserviceTrack{}
}

func (m *memStore) transactionsOf(method string) []models.WebserviceTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WebserviceTransaction
	for _, t := range m.txs {
		if t.WebserviceMethod == method {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) trackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks)
}

func setIf(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
