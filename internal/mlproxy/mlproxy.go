// FilePath: internal/mlproxy/mlproxy.go
package mlproxy

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	nuts "github.com/vaudience/go-nuts"
)

// Kind classifies why an upstream call failed
type Kind string

const (
	KindDisabled     Kind = "disabled"
	KindTimeout      Kind = "timeout"
	KindTransport    Kind = "transport"
	KindBadStatus    Kind = "bad_status"
	KindMalformed    Kind = "malformed"
	KindUnsuccessful Kind = "unsuccessful"
)

// UpstreamError is returned by every proxy call that did not yield a usable result
type UpstreamError struct {
	Service    string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s service: %s (status %d): %v", e.Service, e.Kind, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s service: %s: %v", e.Service, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s service: %s", e.Service, e.Kind)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

var errNoData = stderrors.New("response carries no data")

// KindOf returns the failure kind of an upstream error, or "" for other errors
func KindOf(err error) Kind {
	var upErr *UpstreamError
	if stderrors.As(err, &upErr) {
		return upErr.Kind
	}
	return ""
}

// proxy is the transport shared by both service clients
type proxy struct {
	service string
	url     string
	timeout time.Duration
	client  *resty.Client
}

func newProxy(service, url string, timeout time.Duration) *proxy {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{component: "MLProxy"})

	return &proxy{
		service: service,
		url:     url,
		timeout: timeout,
		client:  client,
	}
}

// post sends body as JSON and returns the raw body of a 2xx response
func (p *proxy) post(ctx context.Context, body interface{}) ([]byte, error) {
	if p.url == "" {
		return nil, p.fail(KindDisabled, 0, stderrors.New("no endpoint configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(p.url)
	if err != nil {
		return nil, p.fail(classify(err), 0, err)
	}
	if !resp.IsSuccess() {
		return nil, p.fail(KindBadStatus, resp.StatusCode(), stderrors.New(truncate(resp.String(), 200)))
	}

	nuts.L.Infof("[MLProxy] %s answered %d in %v", p.service, resp.StatusCode(), time.Since(start))
	return resp.Body(), nil
}

func (p *proxy) fail(kind Kind, status int, err error) *UpstreamError {
	return &UpstreamError{Service: p.service, Kind: kind, StatusCode: status, Err: err}
}

func classify(err error) Kind {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// restyLogger routes resty's diagnostics through the process logger
type restyLogger struct {
	component string
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	nuts.L.Errorf("[%s] "+format, append([]interface{}{l.component}, v...)...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	nuts.L.Warnf("[%s] "+format, append([]interface{}{l.component}, v...)...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {}
