package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/afipxml"
	"github.com/BearBump/CustomsBox/internal/integrations/soap"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

// FakeClient emulates the customs endpoints in-process. RegistrarTitEnvios yields one
// TRACK per bill of lading plus one per empty container; every other method yields a
// confirmation number derived from the transaction id.
type FakeClient struct {
	mu     sync.Mutex
	faults map[string]string
	calls  []soap.Request
}

func New() *FakeClient { return &FakeClient{faults: map[string]string{}} }

// FailMethod makes every later call to method answer with a SOAP fault.
func (f *FakeClient) FailMethod(method, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[method] = message
}

func (f *FakeClient) Calls() []soap.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]soap.Request(nil), f.calls...)
}

func (f *FakeClient) Call(ctx context.Context, req soap.Request) (soap.Result, error) {
	if err := ctx.Err(); err != nil {
		return soap.Result{}, err
	}
	started := time.Now()

	f.mu.Lock()
	f.calls = append(f.calls, req)
	fault, failing := f.faults[req.Method]
	f.mu.Unlock()

	if failing {
		return soap.Result{
			RequestXML:   req.Body,
			ResponseXML:  fault,
			FaultCode:    "soap:Server",
			Errors:       []string{fault},
			ResponseTime: time.Since(started),
			Attempts:     1,
		}, nil
	}

	sum, err := afipxml.Summarize([]byte(req.Body))
	if err != nil {
		return soap.Result{}, errors.Wrap(err, "fake: read request")
	}

	resp := afipxml.Response{Method: req.Method}
	if req.Method == models.MethodRegistrarTitEnvios {
		for i := range sum.Titles {
			resp.Tracks = append(resp.Tracks, afipxml.ParsedTrack{
				Number: fmt.Sprintf("%s-E%03d", sum.TransactionID, i+1),
				Type:   models.TrackTypeEnvio,
			})
		}
		for i := range sum.EmptyContainers {
			resp.Tracks = append(resp.Tracks, afipxml.ParsedTrack{
				Number: fmt.Sprintf("%s-V%03d", sum.TransactionID, i+1),
				Type:   models.TrackTypeContenedorVacio,
			})
		}
	} else {
		resp.ExternalReference = fmt.Sprintf("REG%08d", hash(sum.TransactionID)%100000000)
		resp.ConfirmationNumber = fmt.Sprintf("CONF-%s", sum.TransactionID)
	}

	body, err := afipxml.RenderResponse(sum.TransactionID, resp)
	if err != nil {
		return soap.Result{}, err
	}
	return soap.Result{
		Success:      true,
		RequestXML:   req.Body,
		ResponseXML:  string(body),
		ResponseBody: body,
		ResponseTime: time.Since(started),
		Attempts:     1,
	}, nil
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
