package http

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

// Request is one ready-to-send HTTP request. All template fields are
// rendered before a Request is built.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Body        []byte
	Timeout     time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      strings.ToUpper(method),
		URL:         requestURL,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// BuildURL merges query params into the URL.
func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// FromSpec builds a Request from a rendered request payload. String
// bodies pass through untouched; structured bodies marshal to JSON and
// default the Content-Type.
func FromSpec(spec *parser.RequestSpec, timeout time.Duration) (*Request, error) {
	method := spec.Method
	if method == "" {
		method = "GET"
	}
	r := NewRequest(method, spec.URL)
	r.Timeout = timeout

	for k, v := range spec.Headers {
		r.SetHeader(k, v)
	}
	for k, v := range spec.Params {
		r.SetQueryParam(k, v)
	}

	switch body := spec.Body.(type) {
	case nil:
	case string:
		r.Body = []byte(body)
	case []byte:
		r.Body = body
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		r.Body = data
		if _, ok := r.Headers["Content-Type"]; !ok {
			r.SetHeader("Content-Type", "application/json")
		}
	}

	r.URL = r.BuildURL()
	return r, nil
}

// ValidateURL rejects URLs the client cannot send.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
