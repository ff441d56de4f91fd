package customs

import (
	"context"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/BearBump/CustomsBox/internal/services/transactions"
	"github.com/pkg/errors"
)

// Resubmit retries a failed transaction under the same transaction id. The request is
// rebuilt from the stored shipment snapshot; MIC/DTA re-validates its tracks and runs
// in one DB transaction like the first attempt.
func (o *Orchestrator) Resubmit(ctx context.Context, transactionID string) Result {
	current, err := o.txs.Get(ctx, transactionID)
	if err != nil {
		return failed(resubmitCode(err), err.Error())
	}
	log := txLogger(current)

	var shipment models.Shipment
	if !fromSnapshot(current.AdditionalData, "shipment", &shipment) {
		return failed(CodeInvalidRequest, "transaction has no shipment snapshot")
	}

	var out outcome
	var tracksUsed []string
	run := func(ctx context.Context) error {
		tx, err := o.txs.Retry(ctx, transactionID)
		if err != nil {
			return err
		}
		out.tx = tx
		log.Info("resubmitting", "retry_count", tx.RetryCount, "method", tx.WebserviceMethod)

		var h hook
		var numbers []string
		switch tx.WebserviceMethod {
		case models.MethodRegistrarTitEnvios:
			h = o.storeTracks(&shipment)
		case models.MethodRegistrarMicDta:
			var stored []string
			fromSnapshot(tx.AdditionalData, "tracks", &stored)
			valid, err := o.tracks.ValidateForMicDta(ctx, log, stored)
			if err != nil {
				return err
			}
			if len(valid) == 0 {
				out.tx = o.fail(ctx, log, tx, ErrNoValidTracks.Error(), "")
				out.code = CodeNoValidTracks
				out.errs = []string{ErrNoValidTracks.Error()}
				return nil
			}
			numbers = trackNumbers(valid)
			h = o.consumeTracks(valid)
		}

		body, err := o.build(tx, &shipment, numbers)
		if err != nil {
			out = outcome{tx: o.fail(ctx, log, tx, err.Error(), ""), code: CodeXMLBuild, errs: []string{err.Error()}}
			return nil
		}
		out, err = o.dispatch(ctx, log, tx, body, h)
		if err == nil && out.tx.Status == models.TransactionSuccess {
			tracksUsed = numbers
		}
		return err
	}

	if current.WebserviceMethod == models.MethodRegistrarMicDta {
		if err := o.tm.WithTx(ctx, run); err != nil {
			log.Error("resubmit rolled back", "err", err)
			r := failed(resubmitCode(err), err.Error())
			if out.code != "" {
				r.ErrorCode = out.code
			}
			r.TransactionID = transactionID
			return r
		}
	} else if err := run(ctx); err != nil {
		if out.tx == nil {
			return failed(resubmitCode(err), err.Error())
		}
		out = o.finish(ctx, log, out, err)
	}

	r := out.result()
	r.TracksUsed = tracksUsed
	if out.parsed != nil && r.Success && current.WebserviceMethod == models.MethodRegistrarTitEnvios {
		for _, p := range out.parsed.Tracks {
			r.Tracks = append(r.Tracks, p.Number)
		}
	}
	o.publish(ctx, log, out.tx, r)
	return r
}

func resubmitCode(err error) string {
	switch {
	case errors.Is(err, pgcustoms.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, transactions.ErrRetryNotAllowed):
		return CodeRetryNotAllowed
	case errors.Is(err, transactions.ErrRetriesExhausted):
		return CodeRetriesExhausted
	default:
		return codeFor(err)
	}
}
