package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/anggasct/signalcycle"
	"github.com/anggasct/signalcycle/pkg/dashboard"
	"github.com/anggasct/signalcycle/pkg/remote"
)

type stubRemote struct {
	uploadErr error
}

func (r *stubRemote) FetchSignals(ctx context.Context) (map[int]signalcycle.SignalUpdate, error) {
	return nil, nil
}

func (r *stubRemote) UploadImage(ctx context.Context, id int, filename string, data []byte) (remote.UploadResult, error) {
	if r.uploadErr != nil {
		return remote.UploadResult{}, r.uploadErr
	}
	return remote.UploadResult{VehicleCount: len(data)}, nil
}

func (r *stubRemote) PushTimings(ctx context.Context, entries []remote.TimingEntry, totalTime int) (remote.PushResult, error) {
	return remote.PushResult{}, nil
}

func newTestServer(r dashboard.Remote) (*Server, *signalcycle.Store) {
	scheduler, store, clock := signalcycle.NewTestScheduler()
	signalcycle.SetTimings(store, 30, 30, 30, 30)
	opts := []dashboard.Option{dashboard.WithClock(clock)}
	if r != nil {
		opts = append(opts, dashboard.WithRemote(r))
	}
	controller := dashboard.New(store, scheduler, opts...)
	return New(controller, zerolog.Nop(), time.Second), store
}

func do(s *Server, method, uri string, prepare func(*fasthttp.Request)) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if prepare != nil {
		prepare(&req)
	}

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	s.Handler(&ctx)
	return &ctx
}

func decode(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body), string(ctx.Response.Body()))
	return body
}

func multipartBody(t *testing.T, field, filename string, content []byte) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf.Bytes()
}

func TestHandler_Page(t *testing.T) {
	s, _ := newTestServer(nil)

	ctx := do(s, fasthttp.MethodGet, "/", nil)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.ContentType()), "text/html")
	assert.Contains(t, string(ctx.Response.Body()), "Start Simulation")
	assert.Equal(t, "*", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestHandler_Options(t *testing.T) {
	s, _ := newTestServer(nil)

	ctx := do(s, fasthttp.MethodOptions, "/api/toggle", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Empty(t, ctx.Response.Body())
}

func TestHandler_NotFound(t *testing.T) {
	s, _ := newTestServer(nil)

	ctx := do(s, fasthttp.MethodGet, "/nope", nil)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestHandler_ToggleAndState(t *testing.T) {
	s, store := newTestServer(nil)

	ctx := do(s, fasthttp.MethodPost, "/api/toggle", nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, true, decode(t, ctx)["running"])
	signalcycle.AssertSingleGreen(t, store)

	ctx = do(s, fasthttp.MethodGet, "/api/state", nil)
	state := decode(t, ctx)
	assert.Equal(t, "Green", state["phase"])
	signals := state["signals"].([]any)
	require.Len(t, signals, 4)
	assert.Equal(t, "Green", signals[0].(map[string]any)["status"])

	ctx = do(s, fasthttp.MethodPost, "/api/toggle", nil)
	assert.Equal(t, false, decode(t, ctx)["running"])
}

func TestHandler_TotalTime(t *testing.T) {
	s, store := newTestServer(nil)

	ctx := do(s, fasthttp.MethodPost, "/api/total-time?value=80", nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, float64(80), decode(t, ctx)["total_time"])

	sig, _ := store.Get(1)
	assert.Equal(t, 20, sig.Timing)
}

func TestHandler_TotalTimeRejected(t *testing.T) {
	s, _ := newTestServer(nil)

	for _, value := range []string{"0", "-3", "abc"} {
		ctx := do(s, fasthttp.MethodPost, "/api/total-time", func(req *fasthttp.Request) {
			req.Header.SetContentType("application/x-www-form-urlencoded")
			req.SetBodyString("value=" + value)
		})
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), value)
	}
}

func TestHandler_FormPostRedirects(t *testing.T) {
	s, _ := newTestServer(nil)

	ctx := do(s, fasthttp.MethodPost, "/api/toggle", func(req *fasthttp.Request) {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	})
	assert.Equal(t, fasthttp.StatusSeeOther, ctx.Response.StatusCode())
	assert.Equal(t, "/", string(ctx.Response.Header.Peek("Location")))
}

func TestHandler_Upload(t *testing.T) {
	s, store := newTestServer(&stubRemote{})
	contentType, body := multipartBody(t, "file", "north.jpg", []byte("12345678"))

	ctx := do(s, fasthttp.MethodPost, "/api/upload/1", func(req *fasthttp.Request) {
		req.Header.SetContentType(contentType)
		req.SetBody(body)
	})

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	assert.Equal(t, float64(8), decode(t, ctx)["vehicle_count"])
	sig, _ := store.Get(1)
	assert.Equal(t, 8, sig.VehicleCount)
}

func TestHandler_UploadErrors(t *testing.T) {
	contentType, body := multipartBody(t, "file", "x.jpg", []byte("img"))
	withFile := func(req *fasthttp.Request) {
		req.Header.SetContentType(contentType)
		req.SetBody(body)
	}

	tests := []struct {
		name    string
		remote  dashboard.Remote
		uri     string
		prepare func(*fasthttp.Request)
		status  int
	}{
		{"unknown signal", &stubRemote{}, "/api/upload/9", withFile, fasthttp.StatusNotFound},
		{"bad id", &stubRemote{}, "/api/upload/north", withFile, fasthttp.StatusNotFound},
		{"missing file", &stubRemote{}, "/api/upload/1", nil, fasthttp.StatusBadRequest},
		{"backend down", &stubRemote{uploadErr: signalcycle.NewNetworkError("upload image", errors.New("refused"))}, "/api/upload/1", withFile, fasthttp.StatusBadGateway},
		{"offline", nil, "/api/upload/1", withFile, fasthttp.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(tt.remote)
			ctx := do(s, fasthttp.MethodPost, tt.uri, tt.prepare)
			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			assert.NotEmpty(t, decode(t, ctx)["error"])
		})
	}
}

func TestHandler_Transitions(t *testing.T) {
	s, _ := newTestServer(nil)

	ctx := do(s, fasthttp.MethodGet, "/api/transitions", nil)

	var table []map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &table))
	assert.Len(t, table, 6)
	assert.Equal(t, "Stopped", table[0]["from"])
	assert.Equal(t, "start", table[0]["event"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{nil, fasthttp.StatusOK},
		{signalcycle.NewValidationError("x", 1, "bad"), fasthttp.StatusBadRequest},
		{signalcycle.NewNotFoundError(7), fasthttp.StatusNotFound},
		{signalcycle.NewSchedulerError(signalcycle.ErrCodeAlreadyRunning, "Start", "running"), fasthttp.StatusConflict},
		{signalcycle.NewStatusError("fetch signals", 500), fasthttp.StatusBadGateway},
		{signalcycle.NewParseError("fetch signals", errors.New("eof")), fasthttp.StatusBadGateway},
		{errors.New("other"), fasthttp.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.err), "%v", tt.err)
	}
}
