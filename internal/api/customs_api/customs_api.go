// Package customs_api exposes the customs services as JSON over HTTP.
package customs_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/services/customs"
	"github.com/BearBump/CustomsBox/internal/services/taxids"
	"github.com/BearBump/CustomsBox/internal/services/tracks"
	"github.com/BearBump/CustomsBox/internal/services/transactions"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Deps struct {
	TaxIDs       *taxids.Validator
	Registry     *customs.Registry
	MicDta       *customs.ArgentinaMicDta
	Orchestrator *customs.Orchestrator
	Transactions *transactions.Service
	Tracks       *tracks.Service
	Status       *customs.StatusProjector
	// Queue receives SubmissionRequested messages; nil disables POST /v1/submissions.
	Queue Publisher
	// SubmissionTopic defaults to messages.TopicSubmissionRequested.
	SubmissionTopic string
}

type CustomsAPI struct {
	d        Deps
	validate *validator.Validate
	now      func() time.Time
}

func New(d Deps) *CustomsAPI {
	if d.SubmissionTopic == "" {
		d.SubmissionTopic = messages.TopicSubmissionRequested
	}
	return &CustomsAPI{d: d, validate: newValidator(), now: func() time.Time { return time.Now().UTC() }}
}

// Routes mounts every /v1 endpoint on r.
func (a *CustomsAPI) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/taxids/validate", a.ValidateTaxID)
		r.Post("/taxids/extract", a.ExtractTaxIDs)
		r.Post("/taxids/suggest", a.SuggestTaxID)
		r.Delete("/taxids/cache", a.InvalidateTaxID)

		r.Post("/micdta/registrar-tit-envios", a.RegistrarTitEnvios)
		r.Post("/micdta/submit", a.SubmitMicDta)
		r.Post("/webservices/{type}/submit", a.SubmitWebservice)
		r.Post("/submissions", a.QueueSubmission)

		r.Get("/transactions/{transactionID}", a.GetTransaction)
		r.Post("/transactions/{transactionID}/retry", a.RetryTransaction)
		r.Post("/transactions/{transactionID}/cancel", a.CancelTransaction)

		r.Get("/shipments/{shipmentID}/tracks", a.ListShipmentTracks)
		r.Post("/tracks/complete", a.CompleteTracks)

		r.Get("/voyages/{voyageID}/transactions", a.ListVoyageTransactions)
		r.Get("/voyages/{voyageID}/status", a.VoyageStatus)
		r.Get("/voyages/{voyageID}/can-send", a.CanSend)
	})
}

type taxIDRequest struct {
	Country string `json:"country" validate:"required,country"`
	TaxID   string `json:"tax_id" validate:"required"`
}

type extractRequest struct {
	Text string `json:"text" validate:"required"`
}

type suggestRequest struct {
	Partial string `json:"partial" validate:"required"`
}

type submitRequest struct {
	UserID   uint64           `json:"user_id" validate:"required"`
	Shipment *models.Shipment `json:"shipment" validate:"required"`
	Tracks   []string         `json:"tracks" validate:"omitempty,dive,required"`
}

type queueRequest struct {
	WebserviceType string `json:"webservice_type" validate:"required,webservice_type"`
	submitRequest
}

type completeTracksRequest struct {
	Tracks []string `json:"tracks" validate:"required,min=1,dive,required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *CustomsAPI) ValidateTaxID(w http.ResponseWriter, r *http.Request) {
	var req taxIDRequest
	if !a.decode(w, r, &req) {
		return
	}
	country, _ := models.ParseCountry(req.Country)
	res, err := a.d.TaxIDs.Validate(r.Context(), country, req.TaxID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *CustomsAPI) ExtractTaxIDs(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": taxids.Extract(req.Text)})
}

func (a *CustomsAPI) SuggestTaxID(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !a.decode(w, r, &req) {
		return
	}
	out := taxids.SuggestCorrection(req.Partial)
	if out == nil {
		out = []taxids.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (a *CustomsAPI) InvalidateTaxID(w http.ResponseWriter, r *http.Request) {
	var req taxIDRequest
	if !a.decode(w, r, &req) {
		return
	}
	country, _ := models.ParseCountry(req.Country)
	if err := a.d.TaxIDs.Invalidate(r.Context(), country, req.TaxID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *CustomsAPI) RegistrarTitEnvios(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeResult(w, a.d.MicDta.RegistrarTitEnvios(r.Context(), toSubmit(req)))
}

func (a *CustomsAPI) SubmitMicDta(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeResult(w, a.d.MicDta.MicDtaWithTracks(r.Context(), toSubmit(req)))
}

func (a *CustomsAPI) SubmitWebservice(w http.ResponseWriter, r *http.Request) {
	t, err := models.ParseWebserviceType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	writeResult(w, a.d.Registry.Submit(r.Context(), t, toSubmit(req)))
}

// QueueSubmission hands the request to customs-worker and answers 202 right away.
func (a *CustomsAPI) QueueSubmission(w http.ResponseWriter, r *http.Request) {
	if a.d.Queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "submission queue is not configured"})
		return
	}
	var req queueRequest
	if !a.decode(w, r, &req) {
		return
	}
	msg := messages.SubmissionRequested{
		RequestID:      uuid.NewString(),
		WebserviceType: req.WebserviceType,
		UserID:         req.UserID,
		Shipment:       req.Shipment,
		Tracks:         req.Tracks,
		RequestedAt:    a.now(),
	}
	if err := a.d.Queue.PublishJSON(r.Context(), a.d.SubmissionTopic, msg.RequestID, msg); err != nil {
		slog.Error("queue submission", "err", err, "webservice_type", req.WebserviceType)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "submission queue unavailable"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": msg.RequestID})
}

func (a *CustomsAPI) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.d.Transactions.Get(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *CustomsAPI) RetryTransaction(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.d.Orchestrator.Resubmit(r.Context(), chi.URLParam(r, "transactionID")))
}

func (a *CustomsAPI) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.d.Transactions.Cancel(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *CustomsAPI) ListShipmentTracks(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "shipmentID")
	if !ok {
		return
	}
	views, err := a.d.Tracks.ListByShipment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": views})
}

func (a *CustomsAPI) CompleteTracks(w http.ResponseWriter, r *http.Request) {
	var req completeTracksRequest
	if !a.decode(w, r, &req) {
		return
	}
	done, err := a.d.Tracks.Complete(r.Context(), req.Tracks)
	if err != nil {
		writeError(w, err)
		return
	}
	if done == nil {
		done = []*models.WebserviceTrack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": done})
}

func (a *CustomsAPI) ListVoyageTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "voyageID")
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	txs, err := a.d.Transactions.ListByVoyage(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if txs == nil {
		txs = []*models.WebserviceTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *CustomsAPI) VoyageStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "voyageID")
	if !ok {
		return
	}
	st, err := a.d.Status.VoyageStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voyage_id": id, "webservices": st})
}

func (a *CustomsAPI) CanSend(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "voyageID")
	if !ok {
		return
	}
	q := r.URL.Query()

	var (
		d   customs.Decision
		err error
	)
	if t := q.Get("webservice_type"); t != "" {
		d, err = a.d.Status.CanSendWebservice(r.Context(), id, models.WebserviceType(t))
	} else {
		country, known := models.ParseCountry(q.Get("country"))
		if !known {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "country must be argentina or paraguay"})
			return
		}
		d, err = a.d.Status.CanSendToCountry(r.Context(), id, country)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *CustomsAPI) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

func toSubmit(req submitRequest) customs.SubmitRequest {
	return customs.SubmitRequest{UserID: req.UserID, Shipment: req.Shipment, Tracks: req.Tracks}
}

func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

func resultStatus(res customs.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorCode {
	case customs.CodeInvalidRequest, customs.CodeUnknownWebservice:
		return http.StatusBadRequest
	case customs.CodeNotFound:
		return http.StatusNotFound
	case customs.CodeRetryNotAllowed, customs.CodeRetriesExhausted:
		return http.StatusConflict
	case customs.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeResult(w http.ResponseWriter, res customs.Result) {
	writeJSON(w, resultStatus(res), res)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, pgcustoms.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, pgcustoms.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnknownWebserviceType), errors.Is(err, taxids.ErrUnsupportedCountry):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
