// Package remote talks to the vehicle-counting backend: it fetches the signal
// list, uploads camera images and pushes timing proposals.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/anggasct/signalcycle"
)

const (
	// DefaultUploadPath is the image upload prefix of the current backend
	DefaultUploadPath = "/upload-image"
	// LegacyUploadPath is the prefix used by the older backend
	LegacyUploadPath = "/upload"
	// DefaultTimeout bounds each request when the context has no earlier deadline
	DefaultTimeout = 10 * time.Second
)

// Client is a fasthttp client for the backend API
type Client struct {
	baseURL    string
	uploadPath string
	timeout    time.Duration
	http       *fasthttp.Client
}

// Option configures a Client
type Option func(*Client)

// WithUploadPath sets the upload prefix, e.g. LegacyUploadPath
func WithUploadPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.uploadPath = "/" + strings.Trim(path, "/")
		}
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying fasthttp client
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		uploadPath: DefaultUploadPath,
		timeout:    DefaultTimeout,
		http: &fasthttp.Client{
			Name:                     "signalboard",
			NoDefaultUserAgentHeader: true,
			MaxConnsPerHost:          8,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchSignals reads GET /signals. Keys of the response are signal ids.
func (c *Client) FetchSignals(ctx context.Context) (map[int]signalcycle.SignalUpdate, error) {
	const op = "fetch signals"

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/signals")
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	if err := c.do(ctx, op, req, resp); err != nil {
		return nil, err
	}

	var payload map[string]signalPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, signalcycle.NewParseError(op, err)
	}

	updates := make(map[int]signalcycle.SignalUpdate, len(payload))
	for key, entry := range payload {
		id, err := parseSignalID(key)
		if err != nil {
			return nil, signalcycle.NewParseError(op, err)
		}
		update, err := entry.toUpdate(c.resolve)
		if err != nil {
			return nil, signalcycle.NewParseError(op, err)
		}
		updates[id] = update
	}
	return updates, nil
}

// UploadImage posts the image as multipart field "file" to the upload path for id
func (c *Client) UploadImage(ctx context.Context, id int, filename string, data []byte) (UploadResult, error) {
	const op = "upload image"

	if len(data) == 0 {
		return UploadResult{}, signalcycle.NewValidationError("image", filename, "file is empty")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s%s/%d", c.baseURL, c.uploadPath, id))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(form.FormDataContentType())
	req.SetBody(body.Bytes())

	if err := c.do(ctx, op, req, resp); err != nil {
		return UploadResult{}, err
	}

	var result UploadResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return UploadResult{}, signalcycle.NewParseError(op, err)
	}
	result.ImageURL = c.resolve(result.ImageURL)
	return result, nil
}

// PushTimings posts the proposed timings and the cycle budget to /update-timings
func (c *Client) PushTimings(ctx context.Context, entries []TimingEntry, totalTime int) (PushResult, error) {
	const op = "update timings"

	body, err := json.Marshal(timingsRequest{Timings: entries, TotalTime: totalTime})
	if err != nil {
		return PushResult{}, fmt.Errorf("encode timings: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + "/update-timings")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := c.do(ctx, op, req, resp); err != nil {
		return PushResult{}, err
	}

	var result PushResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return PushResult{}, signalcycle.NewParseError(op, err)
	}
	return result, nil
}

// do sends req with the client timeout, or the context deadline when that is sooner
func (c *Client) do(ctx context.Context, op string, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return signalcycle.NewNetworkError(op, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return signalcycle.NewNetworkError(op, err)
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return signalcycle.NewStatusError(op, status)
	}
	return nil
}

// resolve turns a backend-relative image path into an absolute URL
func (c *Client) resolve(ref string) string {
	if ref == "" {
		return ref
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	target, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(target).String()
}
