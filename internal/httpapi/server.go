// Package httpapi serves puzzle sessions over fasthttp.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-puzzle/internal/msgcat"
	"github.com/park285/cheese-puzzle/internal/puzzle"
	"github.com/park285/cheese-puzzle/internal/service/puzzles"
	"github.com/park285/cheese-puzzle/pkg/puzzledto"
)

// Service is the part of puzzles.Service the API needs.
type Service interface {
	Start(ctx context.Context, req puzzledto.StartRequest) (*puzzledto.SessionState, error)
	State(ctx context.Context, id string) (*puzzledto.SessionState, error)
	Legal(ctx context.Context, id, from string) (*puzzledto.LegalMoves, error)
	Move(ctx context.Context, id, uci string) (*puzzledto.MoveResult, error)
	Hint(ctx context.Context, id string) (*puzzledto.SessionState, error)
	Reset(ctx context.Context, id string) (*puzzledto.SessionState, error)
	BoardPNG(ctx context.Context, id string) ([]byte, error)
	Profile(ctx context.Context, player string) (*puzzledto.Profile, error)
}

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 64 << 10
)

type Server struct {
	svc     Service
	catalog *msgcat.Catalog
	logger  *zap.Logger
	srv     *fasthttp.Server
}

func New(svc Service, catalog *msgcat.Catalog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, catalog: catalog, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:            s.Handler(),
		Name:               "cheese-puzzle",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxRequestBodySize: maxBodySize,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error { return s.srv.ListenAndServe(addr) }

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

// Handler routes requests and logs each one.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(rc *fasthttp.RequestCtx) {
		started := time.Now()
		s.route(rc)
		s.logger.Debug("http_request",
			zap.ByteString("method", rc.Method()),
			zap.ByteString("path", rc.Path()),
			zap.Int("status", rc.Response.StatusCode()),
			zap.Duration("took", time.Since(started)),
		)
	}
}

func (s *Server) route(rc *fasthttp.RequestCtx) {
	path := strings.Trim(string(rc.Path()), "/")
	parts := strings.Split(path, "/")
	method := string(rc.Method())

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch {
	case path == "healthz":
		rc.SetStatusCode(fasthttp.StatusOK)
		rc.SetBodyString("ok")
	case path == "puzzles":
		if !allow(rc, method, fasthttp.MethodPost) {
			return
		}
		s.startPuzzle(ctx, rc)
	case len(parts) == 2 && parts[0] == "profiles":
		if !allow(rc, method, fasthttp.MethodGet) {
			return
		}
		prof, err := s.svc.Profile(ctx, parts[1])
		s.reply(rc, prof, err, parts[1])
	case len(parts) >= 2 && parts[0] == "sessions" && parts[1] != "":
		s.session(ctx, rc, method, parts[1], parts[2:])
	default:
		s.fail(rc, fasthttp.StatusNotFound, "not_found", "no such route")
	}
}

func (s *Server) session(ctx context.Context, rc *fasthttp.RequestCtx, method, id string, rest []string) {
	action := ""
	if len(rest) == 1 {
		action = rest[0]
	} else if len(rest) > 1 {
		s.fail(rc, fasthttp.StatusNotFound, "not_found", "no such route")
		return
	}

	switch action {
	case "":
		if !allow(rc, method, fasthttp.MethodGet) {
			return
		}
		st, err := s.svc.State(ctx, id)
		s.reply(rc, st, err, id)
	case "legal":
		if !allow(rc, method, fasthttp.MethodGet) {
			return
		}
		lm, err := s.svc.Legal(ctx, id, string(rc.QueryArgs().Peek("from")))
		s.reply(rc, lm, err, id)
	case "moves":
		if !allow(rc, method, fasthttp.MethodPost) {
			return
		}
		var req puzzledto.MoveRequest
		if err := json.Unmarshal(rc.PostBody(), &req); err != nil || strings.TrimSpace(req.Move) == "" {
			s.badRequest(rc, "body must be {\"move\":\"<uci>\"}")
			return
		}
		res, err := s.svc.Move(ctx, id, req.Move)
		s.reply(rc, res, err, id)
	case "hint":
		if !allow(rc, method, fasthttp.MethodPost) {
			return
		}
		st, err := s.svc.Hint(ctx, id)
		s.reply(rc, st, err, id)
	case "reset":
		if !allow(rc, method, fasthttp.MethodPost) {
			return
		}
		st, err := s.svc.Reset(ctx, id)
		s.reply(rc, st, err, id)
	case "board.png":
		if !allow(rc, method, fasthttp.MethodGet) {
			return
		}
		img, err := s.svc.BoardPNG(ctx, id)
		if err != nil {
			s.fromError(rc, err, id)
			return
		}
		rc.SetStatusCode(fasthttp.StatusOK)
		rc.SetContentType("image/png")
		rc.Response.Header.Set("Cache-Control", "no-store")
		rc.SetBody(img)
	default:
		s.fail(rc, fasthttp.StatusNotFound, "not_found", "no such route")
	}
}

func (s *Server) startPuzzle(ctx context.Context, rc *fasthttp.RequestCtx) {
	var req puzzledto.StartRequest
	if body := rc.PostBody(); len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.badRequest(rc, "malformed json")
			return
		}
	}
	st, err := s.svc.Start(ctx, req)
	if err != nil {
		s.fromError(rc, err, req.PuzzleID)
		return
	}
	writeJSON(rc, fasthttp.StatusCreated, st)
}

func allow(rc *fasthttp.RequestCtx, method, want string) bool {
	if method == want {
		return true
	}
	rc.Response.Header.Set("Allow", want)
	writeJSON(rc, fasthttp.StatusMethodNotAllowed, puzzledto.Error{Code: "method_not_allowed", Message: "use " + want})
	return false
}

func (s *Server) reply(rc *fasthttp.RequestCtx, body any, err error, id string) {
	if err != nil {
		s.fromError(rc, err, id)
		return
	}
	writeJSON(rc, fasthttp.StatusOK, body)
}

// fromError maps service and session errors to HTTP answers.
func (s *Server) fromError(rc *fasthttp.RequestCtx, err error, id string) {
	switch {
	case errors.Is(err, puzzles.ErrSessionNotFound):
		s.fail(rc, fasthttp.StatusNotFound, "session_not_found", s.catalog.Text("session.not_found", map[string]any{"ID": id}, err.Error()))
	case errors.Is(err, puzzles.ErrPuzzleNotFound):
		s.fail(rc, fasthttp.StatusNotFound, "puzzle_not_found", err.Error())
	case errors.Is(err, puzzles.ErrInvalidMove), errors.Is(err, puzzles.ErrInvalidSource):
		s.badRequest(rc, err.Error())
	case errors.Is(err, puzzle.ErrSolved):
		s.fail(rc, fasthttp.StatusConflict, "already_solved", s.catalog.Text("session.already_solved", nil, err.Error()))
	case errors.Is(err, puzzle.ErrReplyPending):
		writeJSON(rc, fasthttp.StatusConflict, puzzledto.Error{
			Code:      "reply_pending",
			Message:   s.catalog.Text("session.reply_pending", nil, err.Error()),
			Retryable: true,
		})
	case errors.Is(err, puzzle.ErrHintLimit):
		s.fail(rc, fasthttp.StatusConflict, "hint_limit", s.catalog.Text("hint.limit", nil, err.Error()))
	case errors.Is(err, puzzle.ErrNoHint):
		writeJSON(rc, fasthttp.StatusConflict, puzzledto.Error{
			Code:      "no_hint",
			Message:   s.catalog.Text("hint.none", nil, err.Error()),
			Retryable: true,
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(rc, fasthttp.StatusGatewayTimeout, puzzledto.Error{Code: "timeout", Message: err.Error(), Retryable: true})
	default:
		s.logger.Error("http_internal_error", zap.ByteString("path", rc.Path()), zap.Error(err))
		s.fail(rc, fasthttp.StatusInternalServerError, "internal", s.catalog.Text("error.internal", nil, "internal error"))
	}
}

func (s *Server) badRequest(rc *fasthttp.RequestCtx, reason string) {
	s.fail(rc, fasthttp.StatusBadRequest, "bad_request", s.catalog.Text("error.bad_request", map[string]any{"Reason": reason}, reason))
}

func (s *Server) fail(rc *fasthttp.RequestCtx, status int, code, msg string) {
	writeJSON(rc, status, puzzledto.Error{Code: code, Message: msg})
}

func writeJSON(rc *fasthttp.RequestCtx, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		rc.SetStatusCode(fasthttp.StatusInternalServerError)
		rc.SetBodyString(`{"code":"internal","message":"encode response"}`)
		return
	}
	rc.SetStatusCode(status)
	rc.SetContentType("application/json; charset=utf-8")
	rc.SetBody(raw)
}
