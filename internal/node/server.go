package node

import (
	"encoding/json"
	"net"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/onchain-chess/internal/chesserr"
	"github.com/park285/onchain-chess/pkg/chessdto"
)

// Server is the JSON API of a node:
//
//	POST /execute {"sender": ..., "msg": ExecuteMsg} -> TxResult
//	POST /query   {"msg": QueryMsg}                  -> view or page
//	GET  /status                                     -> NodeStatus
type Server struct {
	chain *Chain
	srv   *fasthttp.Server
}

func NewServer(ch *Chain) *Server {
	s := &Server{chain: ch}
	s.srv = &fasthttp.Server{
		Handler:            s.handle,
		Name:               "chessd",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error { return s.srv.ListenAndServe(addr) }

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/execute":
		if !ctx.IsPost() {
			methodNotAllowed(ctx)
			return
		}
		s.execute(ctx)
	case "/query":
		if !ctx.IsPost() {
			methodNotAllowed(ctx)
			return
		}
		s.query(ctx)
	case "/status":
		if !ctx.IsGet() {
			methodNotAllowed(ctx)
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, s.chain.Status())
	default:
		writeJSON(ctx, fasthttp.StatusNotFound, chessdto.DomainError{Kind: string(chesserr.KindNotFound), Code: "route_not_found", Message: "no such endpoint"})
	}
}

func (s *Server) execute(ctx *fasthttp.RequestCtx) {
	var req chessdto.ExecuteRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		badRequest(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, s.chain.Execute(ctx, req.Sender, req.Msg))
}

func (s *Server) query(ctx *fasthttp.RequestCtx) {
	var req chessdto.QueryRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		badRequest(ctx, err)
		return
	}
	res, err := s.chain.Query(ctx, req.Msg)
	if err != nil {
		writeJSON(ctx, statusFor(chesserr.KindOf(err)), s.chain.DomainError(err))
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, res)
}

func statusFor(k chesserr.Kind) int {
	switch k {
	case chesserr.KindValidation, chesserr.KindRule:
		return fasthttp.StatusBadRequest
	case chesserr.KindAuthorization:
		return fasthttp.StatusForbidden
	case chesserr.KindNotFound:
		return fasthttp.StatusNotFound
	case chesserr.KindState, chesserr.KindClock:
		return fasthttp.StatusConflict
	default:
		return fasthttp.StatusInternalServerError
	}
}

func badRequest(ctx *fasthttp.RequestCtx, err error) {
	writeJSON(ctx, fasthttp.StatusBadRequest, chessdto.DomainError{
		Kind:    string(chesserr.KindValidation),
		Code:    "invalid_message",
		Message: "malformed request body: " + err.Error(),
	})
}

func methodNotAllowed(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusMethodNotAllowed, chessdto.DomainError{
		Kind:    string(chesserr.KindValidation),
		Code:    "method_not_allowed",
		Message: string(ctx.Method()) + " is not allowed on " + string(ctx.Path()),
	})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}
