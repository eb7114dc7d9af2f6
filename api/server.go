// Package api exposes the ledger operations over HTTP. Every operation is a
// POST /rpc/<operation> call; reads are also served as GET resources.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mxiledger/application"
	"mxiledger/application/dto"
	"mxiledger/config"
	"mxiledger/domain/entities"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the operation layer
type Server struct {
	core   *application.Core
	config *config.Config
	router *chi.Mux
}

// NewServer creates the HTTP transport over core
func NewServer(core *application.Core) *Server {
	s := &Server{
		core:   core,
		config: config.Get(),
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "mxiledger"})
	})
	r.Handle("/metrics", MetricsHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.gatewayAuth)

		r.Route("/rpc", func(r chi.Router) {
			r.Post("/"+application.OpCalculateVestingRewards, rpc(application.OpCalculateVestingRewards, s.core.CalculateAndUpdateVestingRewards))
			r.Post("/"+application.OpResetGlobalVestingRewards, rpcNoInput(application.OpResetGlobalVestingRewards, s.core.AdminResetGlobalVestingRewards))
			r.Post("/"+application.OpAddBalanceWithoutCommission, rpc(application.OpAddBalanceWithoutCommission, s.core.AdminAddBalanceWithoutCommissions))
			r.Post("/"+application.OpAddBalanceWithCommission, rpc(application.OpAddBalanceWithCommission, s.core.AdminAddBalanceWithCommissions))
			r.Post("/"+application.OpRemoveBalance, rpc(application.OpRemoveBalance, s.core.AdminRemoveBalance))
			r.Post("/"+application.OpLinkReferral, rpc(application.OpLinkReferral, s.core.AdminLinkReferral))
			r.Post("/"+application.OpSetGameCapacity, rpc(application.OpSetGameCapacity, s.core.AdminSetGameCapacity))

			r.Post("/"+application.OpCreateMiniBattle, rpc(application.OpCreateMiniBattle, s.core.CreateMiniBattle))
			r.Post("/"+application.OpCreateChallenge, rpc(application.OpCreateChallenge, s.core.CreateChallenge))
			r.Post("/"+application.OpCreateTournament, rpc(application.OpCreateTournament, s.core.CreateTournament))
			r.Post("/"+application.OpJoinMiniBattle, rpc(application.OpJoinMiniBattle, s.core.JoinMiniBattle))
			r.Post("/"+application.OpJoinTournament, rpc(application.OpJoinTournament, s.core.JoinTournament))
			r.Post("/"+application.OpJoinChallenge, rpc(application.OpJoinChallenge, s.core.JoinChallenge))
			r.Post("/"+application.OpCancelChallenge, rpc(application.OpCancelChallenge, s.core.CancelChallenge))
			r.Post("/"+application.OpCancelMiniBattle, rpc(application.OpCancelMiniBattle, s.core.CancelMiniBattle))
			r.Post("/"+application.OpSubmitResult, rpc(application.OpSubmitResult, s.core.SubmitResult))
			r.Post("/"+application.OpGenerateInviteCode, rpcNoInput(application.OpGenerateInviteCode, s.core.GenerateChallengeInviteCode))

			r.Post("/"+application.OpRegisterAccount, rpc(application.OpRegisterAccount, s.core.RegisterAccount))
			r.Post("/"+application.OpRecordPurchase, rpc(application.OpRecordPurchase, s.core.RecordPurchase))
			r.Post("/"+application.OpGetBalance, rpc(application.OpGetBalance, s.core.GetBalance))
		})

		r.Route("/v1", func(r chi.Router) {
			r.Get("/accounts/{userID}", s.handleGetAccount)
			r.Get("/wagers", s.handleListWagers)
			r.Get("/capacity/{gameType}", s.handleGetCapacity)
			r.Get("/audit", s.handleListAudit)
		})
	})
}

// rpc decodes the JSON body into Req, runs fn and encodes its response
func rpc[Req any, Resp any](operation string, fn func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := decodeBody(r, &req); err != nil {
			failed(w, operation, err)
			return
		}
		resp, err := fn(r.Context(), req)
		if err != nil {
			failed(w, operation, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// rpcNoInput serves operations that take no parameters and ignores the body
func rpcNoInput[Resp any](operation string, fn func(context.Context) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r.Context())
		if err != nil {
			failed(w, operation, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeBody(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", entities.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: malformed request body: %v", entities.ErrInvalidRequest, err)
	}
	return nil
}

func failed(w http.ResponseWriter, operation string, err error) {
	RPCErrorsTotal.WithLabelValues(operation, entities.ErrorCode(err)).Inc()
	writeError(w, err)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.core.GetBalance(r.Context(), dto.UserRequest{UserID: chi.URLParam(r, "userID")})
	if err != nil {
		failed(w, application.OpGetBalance, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListWagers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.core.ListActiveWagers(r.Context(), r.URL.Query().Get("game_type"))
	if err != nil {
		failed(w, application.OpListActiveWagers, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCapacity(w http.ResponseWriter, r *http.Request) {
	resp, err := s.core.GetCapacity(r.Context(), chi.URLParam(r, "gameType"))
	if err != nil {
		failed(w, application.OpGetCapacity, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			failed(w, "list_audit_records", fmt.Errorf("%w: limit must be a number", entities.ErrInvalidRequest))
			return
		}
		limit = n
	}
	records, err := s.core.ListAuditRecords(r.Context(), limit)
	if err != nil {
		failed(w, "list_audit_records", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "records": records})
}
