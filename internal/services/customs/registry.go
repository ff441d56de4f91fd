package customs

import (
	"context"
	"fmt"
	"sort"

	"github.com/BearBump/CustomsBox/internal/models"
)

// Registry maps each webservice type to its handler.
type Registry struct {
	handlers map[models.WebserviceType]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[models.WebserviceType]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Type()] = h
	}
	return r
}

// DefaultHandlers returns one handler per known webservice type.
func DefaultHandlers(o *Orchestrator) []Handler {
	hs := []Handler{NewArgentinaMicDta(o)}
	for t := range singleStepMethods {
		hs = append(hs, NewSingleStep(o, t))
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i].Type() < hs[j].Type() })
	return hs
}

func (r *Registry) Handler(t models.WebserviceType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

func (r *Registry) Types() []models.WebserviceType {
	out := make([]models.WebserviceType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Submit(ctx context.Context, t models.WebserviceType, req SubmitRequest) Result {
	h, ok := r.handlers[t]
	if !ok {
		return failed(CodeUnknownWebservice, fmt.Sprintf("unknown webservice type %q", t))
	}
	return h.Submit(ctx, req)
}
