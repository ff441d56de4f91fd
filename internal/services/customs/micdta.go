package customs

import (
	"context"
	"log/slog"

	"github.com/BearBump/CustomsBox/internal/integrations/afipxml"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

// ArgentinaMicDta is the two-step AFIP flow: RegistrarTitEnvios issues TRACKs,
// RegistrarMicDta consumes them.
type ArgentinaMicDta struct {
	o *Orchestrator
}

func NewArgentinaMicDta(o *Orchestrator) *ArgentinaMicDta {
	return &ArgentinaMicDta{o: o}
}

func (h *ArgentinaMicDta) Type() models.WebserviceType { return models.WebserviceMicDta }

func (h *ArgentinaMicDta) Submit(ctx context.Context, req SubmitRequest) Result {
	return h.MicDtaWithTracks(ctx, req)
}

// RegistrarTitEnvios is step 1. A successful call that returns no TRACKs still fails.
func (h *ArgentinaMicDta) RegistrarTitEnvios(ctx context.Context, req SubmitRequest) Result {
	return h.o.submitOnce(ctx, models.WebserviceMicDta, models.MethodRegistrarTitEnvios, "registrar_tit_envios", req, h.o.storeTracks(req.Shipment))
}

func (o *Orchestrator) storeTracks(shipment *models.Shipment) hook {
	return func(ctx context.Context, tx *models.WebserviceTransaction, parsed *afipxml.Response) (map[string]any, error) {
		if len(parsed.Tracks) == 0 {
			return nil, ErrNoTracksReceived
		}
		created, err := o.tracks.CreateFromResponse(ctx, tx, shipment, parsed.Tracks)
		if err != nil {
			return nil, errors.Wrap(err, "store tracks")
		}
		txLogger(tx).Info("tracks generated", "count", len(created))
		return map[string]any{"tracks_generated": len(created)}, nil
	}
}

func (o *Orchestrator) consumeTracks(valid []*models.WebserviceTrack) hook {
	return func(ctx context.Context, tx *models.WebserviceTransaction, _ *afipxml.Response) (map[string]any, error) {
		used, err := o.tracks.MarkUsed(ctx, valid)
		if err != nil {
			return nil, err
		}
		return map[string]any{"tracks_used": trackNumbers(used)}, nil
	}
}

// MicDtaWithTracks is step 2. Without req.Tracks it chains step 1 first. The part from
// transaction creation to track consumption runs in one DB transaction: a transport
// failure or a lost race on the tracks rolls all of it back.
func (h *ArgentinaMicDta) MicDtaWithTracks(ctx context.Context, req SubmitRequest) Result {
	o := h.o
	if err := validateRequest(req); err != nil {
		return failed(CodeInvalidRequest, err.Error())
	}

	numbers := req.Tracks
	var chained string
	if len(numbers) == 0 {
		step1 := h.RegistrarTitEnvios(ctx, req)
		if !step1.Success {
			return step1
		}
		chained = step1.TransactionID
		numbers = step1.Tracks
	}

	base := slog.With("company_id", req.Shipment.CompanyID, "webservice_type", models.WebserviceMicDta)
	var (
		out   outcome
		valid []*models.WebserviceTrack
	)
	err := o.tm.WithTx(ctx, func(ctx context.Context) error {
		var err error
		valid, err = o.tracks.ValidateForMicDta(ctx, base, numbers)
		if err != nil {
			return err
		}
		if len(valid) == 0 {
			return ErrNoValidTracks
		}

		used := trackNumbers(valid)
		tx, err := o.createTransaction(ctx, models.WebserviceMicDta, models.MethodRegistrarMicDta, req, snapshot("micdta", req, used))
		if err != nil {
			return err
		}
		out.tx = tx
		log := txLogger(tx)

		body, err := o.build(tx, req.Shipment, used)
		if err != nil {
			log.Error("xml build failed", "err", err)
			out = outcome{tx: o.fail(ctx, log, tx, err.Error(), ""), code: CodeXMLBuild, errs: []string{err.Error()}}
			return nil
		}

		out, err = o.dispatch(ctx, log, tx, body, o.consumeTracks(valid))
		return err
	})

	if err != nil {
		r := failed(codeFor(err), err.Error())
		if errors.Is(err, ErrNoValidTracks) {
			r.Errors = []string{ErrNoValidTracks.Error()}
		}
		if out.code != "" {
			r.ErrorCode = out.code
		}
		r.ChainedTransactionID = chained
		if out.tx != nil {
			// rolled back: the id is reported for log correlation only
			r.TransactionID = out.tx.TransactionID
			txLogger(out.tx).Error("micdta rolled back", "err", err)
		} else {
			base.Warn("micdta not sent", "err", err)
		}
		return r
	}

	log := txLogger(out.tx)
	r := out.result()
	r.ChainedTransactionID = chained
	if r.Success {
		r.TracksUsed = trackNumbers(valid)
	}
	o.publish(ctx, log, out.tx, r)
	return r
}

func trackNumbers(ts []*models.WebserviceTrack) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.TrackNumber)
	}
	return out
}
