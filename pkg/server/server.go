// Package server serves the signal board over HTTP with fasthttp.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/anggasct/signalcycle"
	"github.com/anggasct/signalcycle/pkg/dashboard"
	"github.com/anggasct/signalcycle/pkg/render"
)

const uploadPrefix = "/api/upload/"

// MaxUploadSize bounds the request body of an image upload
const MaxUploadSize = 16 << 20

// Server exposes the board page and the board controls
type Server struct {
	controller *dashboard.Controller
	page       *render.HTMLView
	logger     zerolog.Logger
	timeout    time.Duration
	srv        *fasthttp.Server
}

// New creates a server for controller. timeout bounds the backend calls made per request.
func New(controller *dashboard.Controller, logger zerolog.Logger, timeout time.Duration) *Server {
	s := &Server{
		controller: controller,
		page:       render.NewHTMLView("", 2),
		logger:     logger,
		timeout:    timeout,
	}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler,
		Name:               "signalboard",
		MaxRequestBodySize: MaxUploadSize,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
	}
	return s
}

// ListenAndServe serves on addr until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info().Str("listen", addr).Msg("board server started")
	return s.srv.ListenAndServe(addr)
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("listen", ln.Addr().String()).Msg("board server started")
	return s.srv.Serve(ln)
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown() error {
	return s.srv.Shutdown()
}

// Handler routes a request
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type")

	if method == fasthttp.MethodOptions {
		ctx.SetStatusCode(fasthttp.StatusOK)
		return
	}

	switch {
	case path == "/" && method == fasthttp.MethodGet:
		s.handlePage(ctx)

	case path == "/api/state" && method == fasthttp.MethodGet:
		s.writeJSON(ctx, fasthttp.StatusOK, s.controller.Snapshot())

	case path == "/api/transitions" && method == fasthttp.MethodGet:
		s.handleTransitions(ctx)

	case path == "/api/toggle" && method == fasthttp.MethodPost:
		s.handleToggle(ctx)

	case path == "/api/total-time" && method == fasthttp.MethodPost:
		s.handleTotalTime(ctx)

	case path == "/api/refresh" && method == fasthttp.MethodPost:
		s.handleRefresh(ctx)

	case strings.HasPrefix(path, uploadPrefix) && method == fasthttp.MethodPost:
		s.handleUpload(ctx, path[len(uploadPrefix):])

	default:
		ctx.Error("NotFound", fasthttp.StatusNotFound)
	}
}

func (s *Server) handlePage(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("text/html; charset=utf-8")
	if err := s.page.WriteTo(ctx, s.controller.Snapshot(), true); err != nil {
		s.logger.Error().Err(err).Msg("render board page")
		ctx.Error("render failed", fasthttp.StatusInternalServerError)
	}
}

type transitionView struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Event  string `json:"event"`
	Guard  string `json:"guard,omitempty"`
	Action string `json:"action,omitempty"`
}

func (s *Server) handleTransitions(ctx *fasthttp.RequestCtx) {
	table := s.controller.Transitions()
	out := make([]transitionView, 0, len(table))
	for _, t := range table {
		out = append(out, transitionView{
			From:   t.Source.String(),
			To:     t.Target.String(),
			Event:  t.EventName,
			Guard:  t.GuardName,
			Action: t.ActionName,
		})
	}
	s.writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) handleToggle(ctx *fasthttp.RequestCtx) {
	running, err := s.controller.Toggle()
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.logger.Info().Bool("running", running).Msg("cycle toggled")
	s.respond(ctx, map[string]bool{"running": running})
}

func (s *Server) handleTotalTime(ctx *fasthttp.RequestCtx) {
	raw := strings.TrimSpace(string(ctx.FormValue("value")))
	value, err := strconv.Atoi(raw)
	if err != nil {
		s.writeError(ctx, signalcycle.NewValidationError("total time", raw, "must be a whole number of seconds"))
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()

	if err := s.controller.SetTotalTime(reqCtx, value); err != nil {
		s.writeError(ctx, err)
		return
	}
	s.respond(ctx, map[string]int{"total_time": value})
}

func (s *Server) handleRefresh(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := s.requestContext()
	defer cancel()

	if err := s.controller.LoadSignals(reqCtx); err != nil {
		s.writeError(ctx, err)
		return
	}
	s.respond(ctx, s.controller.Snapshot())
}

func (s *Server) handleUpload(ctx *fasthttp.RequestCtx, rawID string) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		s.writeError(ctx, signalcycle.NewNotFoundError(0))
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		s.writeError(ctx, signalcycle.NewValidationError("file", rawID, "multipart field \"file\" is required"))
		return
	}
	f, err := header.Open()
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	reqCtx, cancel := s.requestContext()
	defer cancel()

	sig, err := s.controller.UploadImage(reqCtx, id, header.Filename, data)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.respond(ctx, sig)
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// respond answers browser form posts with a redirect back to the board and API calls with JSON
func (s *Server) respond(ctx *fasthttp.RequestCtx, v any) {
	if isFormPost(ctx) {
		ctx.Response.Header.Set("Location", "/")
		ctx.SetStatusCode(fasthttp.StatusSeeOther)
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, v)
}

func isFormPost(ctx *fasthttp.RequestCtx) bool {
	contentType := string(ctx.Request.Header.ContentType())
	accept := string(ctx.Request.Header.Peek("Accept"))
	isForm := strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data")
	return isForm && strings.Contains(accept, "text/html")
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, err error) {
	status := StatusFor(err)
	if status >= fasthttp.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", string(ctx.Path())).Msg("request failed")
	}
	s.writeJSON(ctx, status, map[string]string{"error": err.Error()})
}

// StatusFor maps an error to the HTTP status reported to the client
func StatusFor(err error) int {
	switch {
	case err == nil:
		return fasthttp.StatusOK
	case signalcycle.IsValidationError(err):
		return fasthttp.StatusBadRequest
	case signalcycle.IsNotFoundError(err):
		return fasthttp.StatusNotFound
	case errors.Is(err, signalcycle.ErrAlreadyRunning), errors.Is(err, signalcycle.ErrNoSignals):
		return fasthttp.StatusConflict
	case signalcycle.IsNetworkError(err), signalcycle.IsParseError(err):
		return fasthttp.StatusBadGateway
	default:
		return fasthttp.StatusInternalServerError
	}
}
