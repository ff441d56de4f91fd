package soap

import (
	"context"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
)

// Request is one SOAP operation. Body is the operation element, already serialized;
// the client wraps it in the envelope.
type Request struct {
	Country       models.Country
	Environment   models.Environment
	Method        string
	TransactionID string
	Body          string
	Timeout       time.Duration
	MaxRetries    int
}

// Result of a call that reached the remote side. Success=false means a SOAP fault
// or a non-2xx answer; transport failures are returned as errors instead.
type Result struct {
	Success      bool
	RequestXML   string
	ResponseXML  string
	// ResponseBody is the content of soap:Body, ready for the response parser.
	ResponseBody []byte
	ResponseTime time.Duration
	FaultCode    string
	Errors       []string
	Attempts     int
}

type Client interface {
	Call(ctx context.Context, req Request) (Result, error)
}
