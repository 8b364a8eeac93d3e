package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"codearena/internal/api/middleware"
	"codearena/internal/app/service"
	"codearena/internal/common"

	"github.com/go-chi/chi/v5"
)

type ContestHandler struct {
	contestService     *service.ContestService
	leaderboardService *service.LeaderboardService
}

func NewContestHandler(contestService *service.ContestService, leaderboardService *service.LeaderboardService) *ContestHandler {
	return &ContestHandler{contestService: contestService, leaderboardService: leaderboardService}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.With(middleware.AdminOnly).Post("/", h.create)
	r.Route("/{contestID}", func(r chi.Router) {
		r.Get("/", h.details)
		r.Post("/register", h.register)
		r.Get("/leaderboard", h.leaderboard)
		r.Get("/result", h.result)
	})
}

func (h *ContestHandler) create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	contest, err := h.contestService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, contest)
}

func (h *ContestHandler) list(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	views, err := h.contestService.List(r.Context(), identity.Email)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, views)
}

func (h *ContestHandler) details(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	details, err := h.contestService.Details(r.Context(), chi.URLParam(r, "contestID"), identity.Email)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, details)
}

func (h *ContestHandler) register(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err := h.contestService.Register(r.Context(), chi.URLParam(r, "contestID"), identity.Email); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

func (h *ContestHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())

	// page=0 (or absent with jump=true) means "the page holding my row".
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 && r.URL.Query().Get("jump") != "true" {
		page = 1
	}

	standings, err := h.leaderboardService.Standings(r.Context(), chi.URLParam(r, "contestID"), identity.Email, page, size)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, standings)
}

func (h *ContestHandler) result(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	result, err := h.contestService.Result(r.Context(), chi.URLParam(r, "contestID"), identity.Email)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}
