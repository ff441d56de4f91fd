package soaphttp

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/soap"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

const (
	soapEnvNS      = "http://schemas.xmlsoap.org/soap/envelope/"
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 8 << 20
)

var ErrNoEndpoint = errors.New("no endpoint configured")

// DefaultBackoff is the wait before the 1st, 2nd and 3rd retry.
var DefaultBackoff = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

type Endpoint struct {
	Country     models.Country
	Environment models.Environment
}

type Client struct {
	endpoints map[Endpoint]string
	backoff   []time.Duration
	httpc     *http.Client
	sleep     func(ctx context.Context, d time.Duration) error
}

// New builds a client. backoff may be nil for DefaultBackoff; tests pass tiny values.
func New(endpoints map[Endpoint]string, backoff []time.Duration) *Client {
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	return &Client{
		endpoints: endpoints,
		backoff:   backoff,
		// per-request deadlines come from the context
		httpc: &http.Client{},
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type envelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	SoapNS  string   `xml:"xmlns:soap,attr"`
	Body    struct {
		Inner string `xml:",innerxml"`
	} `xml:"soap:Body"`
}

type respEnvelope struct {
	Body struct {
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

func (c *Client) buildEnvelope(body string) (string, error) {
	env := envelope{SoapNS: soapEnvNS}
	env.Body.Inner = body
	b, err := xml.Marshal(env)
	if err != nil {
		return "", errors.Wrap(err, "marshal envelope")
	}
	return xml.Header + string(b), nil
}

func (c *Client) Call(ctx context.Context, req soap.Request) (soap.Result, error) {
	url, ok := c.endpoints[Endpoint{Country: req.Country, Environment: req.Environment}]
	if !ok || url == "" {
		return soap.Result{}, errors.Wrapf(ErrNoEndpoint, "%s/%s", req.Country, req.Environment)
	}

	payload, err := c.buildEnvelope(req.Body)
	if err != nil {
		return soap.Result{}, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	started := time.Now()
	var lastErr error
	for attempt := 0; attempt <= req.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff[min(attempt-1, len(c.backoff)-1)]
			if err := c.sleep(ctx, wait); err != nil {
				return soap.Result{}, errors.Wrap(err, "wait retry")
			}
		}

		res, retryable, err := c.do(ctx, url, req.Method, payload, timeout)
		if err == nil {
			res.RequestXML = payload
			res.ResponseTime = time.Since(started)
			res.Attempts = attempt + 1
			return res, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return soap.Result{}, lastErr
}

// do performs one attempt. Transport failures and 502-504 without a fault are retryable.
func (c *Client) do(ctx context.Context, url, method, payload string, timeout time.Duration) (soap.Result, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
	if err != nil {
		return soap.Result{}, false, errors.Wrap(err, "new request")
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", `"`+method+`"`)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return soap.Result{}, true, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return soap.Result{}, true, errors.Wrap(err, "read body")
	}

	var env respEnvelope
	parseErr := xml.NewDecoder(bytes.NewReader(raw)).Decode(&env)

	if parseErr == nil && env.Body.Fault != nil {
		return soap.Result{
			ResponseXML: string(raw),
			FaultCode:   env.Body.Fault.Code,
			Errors:      []string{strings.TrimSpace(env.Body.Fault.String)},
		}, false, nil
	}

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return soap.Result{}, true, fmt.Errorf("soap endpoint http %d", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return soap.Result{
			ResponseXML: string(raw),
			Errors:      []string{fmt.Sprintf("http %d", resp.StatusCode)},
		}, false, nil
	}

	if parseErr != nil {
		return soap.Result{
			ResponseXML: string(raw),
			Errors:      []string{"malformed soap response: " + parseErr.Error()},
		}, false, nil
	}

	return soap.Result{
		Success:      true,
		ResponseXML:  string(raw),
		ResponseBody: bytes.TrimSpace(env.Body.Inner),
	}, false, nil
}
