package customs

import (
	"context"

	"github.com/BearBump/CustomsBox/internal/models"
)

var singleStepMethods = map[models.WebserviceType]string{
	models.WebserviceAnticipada:      models.MethodRegistrarViaje,
	models.WebserviceDesconsolidados: models.MethodRegistrarDesconsolidado,
	models.WebserviceTransbordos:     models.MethodRegistrarTransbordo,
	models.WebserviceMane:            models.MethodRegistrarMane,
	models.WebserviceParaguayCustoms: models.MethodEnviarManifiestoPY,
}

// SingleStep submits one operation per call: anticipada, desconsolidados,
// transbordos, mane and the Paraguayan manifest.
type SingleStep struct {
	o      *Orchestrator
	typ    models.WebserviceType
	method string
}

func NewSingleStep(o *Orchestrator, t models.WebserviceType) *SingleStep {
	return &SingleStep{o: o, typ: t, method: singleStepMethods[t]}
}

func (h *SingleStep) Type() models.WebserviceType { return h.typ }

func (h *SingleStep) Submit(ctx context.Context, req SubmitRequest) Result {
	return h.o.submitOnce(ctx, h.typ, h.method, "submit", req, nil)
}

// submitOnce runs create -> build -> dispatch outside any DB transaction.
// Partial failures leave the row in error for a later Resubmit.
func (o *Orchestrator) submitOnce(ctx context.Context, t models.WebserviceType, method, step string, req SubmitRequest, h hook) Result {
	if err := validateRequest(req); err != nil {
		return failed(CodeInvalidRequest, err.Error())
	}

	tx, err := o.createTransaction(ctx, t, method, req, snapshot(step, req, nil))
	if err != nil {
		return failed(CodeInternal, err.Error())
	}
	log := txLogger(tx)
	log.Info("submission started", "method", method, "voyage_id", tx.VoyageID)

	var out outcome
	body, err := o.build(tx, req.Shipment, nil)
	if err != nil {
		log.Error("xml build failed", "err", err)
		out = outcome{tx: o.fail(ctx, log, tx, err.Error(), ""), code: CodeXMLBuild, errs: []string{err.Error()}}
	} else {
		out, err = o.dispatch(ctx, log, tx, body, h)
		out = o.finish(ctx, log, out, err)
	}

	r := out.result()
	if out.parsed != nil && r.Success {
		for _, p := range out.parsed.Tracks {
			r.Tracks = append(r.Tracks, p.Number)
		}
	}
	o.publish(ctx, log, out.tx, r)
	return r
}
