package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"codearena/internal/api/middleware"
	"codearena/internal/app/session"
	"codearena/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

// SessionHandler exposes the live contest session over HTTP. Controller side
// effects that belong to the client (fullscreen, notifications, the forced
// redirect) are buffered as events the client polls and replays.
type SessionHandler struct {
	manager *session.Manager

	mu     sync.Mutex
	events map[string][]sessionEvent // session ID -> pending events
}

type sessionEvent struct {
	Kind    string `json:"kind"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager, events: map[string][]sessionEvent{}}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.enter)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.snapshot)
		r.Get("/events", h.drainEvents)
		r.Post("/select", h.selectProblem)
		r.Post("/language", h.setLanguage)
		r.Put("/code", h.setCode)
		r.Post("/run", h.run)
		r.Post("/submit", h.submit)
		r.Get("/problems/{problemID}/submissions", h.submissions)
		r.Post("/violation", h.violation)
		r.Post("/finish", h.finish)
		r.Delete("/", h.leave)
	})
}

func (h *SessionHandler) push(sessionID string, ev sessionEvent) {
	h.mu.Lock()
	h.events[sessionID] = append(h.events[sessionID], ev)
	h.mu.Unlock()
}

func (h *SessionHandler) enter(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req struct {
		ContestID string `json:"contest_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContestID == "" {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: contest_id is required")
		return
	}

	// The session ID is minted after entry succeeds, so hook events raised
	// during entry land in a buffer that is rebound to the ID afterwards.
	bind := newEventBinding()
	hooks := session.Hooks{
		EnterFullscreen: func() { bind.deliver(h, sessionEvent{Kind: "enter_fullscreen"}) },
		ExitFullscreen:  func() { bind.deliver(h, sessionEvent{Kind: "exit_fullscreen"}) },
		Notify: func(title, message string) {
			bind.deliver(h, sessionEvent{Kind: "notify", Title: title, Message: message})
		},
		NavigateAway: func() { bind.deliver(h, sessionEvent{Kind: "navigate_away"}) },
	}

	id, ctrl, err := h.manager.Open(r.Context(), req.ContestID, identity.Email, jwtauth.TokenFromHeader(r), hooks)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	bind.attach(h, id)

	common.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": id,
		"snapshot":   ctrl.Snapshot(),
	})
}

// eventBinding buffers hook events until the session ID exists, then routes
// them to the handler's per-session queue. Hooks may fire from the phase
// resolver goroutine, so both paths are locked.
type eventBinding struct {
	mu        sync.Mutex
	sessionID string
	pending   []sessionEvent
}

func newEventBinding() *eventBinding { return &eventBinding{} }

func (b *eventBinding) deliver(h *SessionHandler, ev sessionEvent) {
	b.mu.Lock()
	if b.sessionID == "" {
		b.pending = append(b.pending, ev)
		b.mu.Unlock()
		return
	}
	id := b.sessionID
	b.mu.Unlock()
	h.push(id, ev)
}

func (b *eventBinding) attach(h *SessionHandler, sessionID string) {
	b.mu.Lock()
	b.sessionID = sessionID
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, ev := range pending {
		h.push(sessionID, ev)
	}
}

// owned resolves the session and verifies the caller owns it.
func (h *SessionHandler) owned(w http.ResponseWriter, r *http.Request) (*session.Controller, string, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil, "", false
	}
	sessionID := chi.URLParam(r, "sessionID")
	ctrl, err := h.manager.Get(sessionID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return nil, "", false
	}
	if ctrl.Email() != identity.Email {
		common.RespondWithError(w, http.StatusForbidden, "Not your session")
		return nil, "", false
	}
	return ctrl, sessionID, true
}

func (h *SessionHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) drainEvents(w http.ResponseWriter, r *http.Request) {
	_, sessionID, ok := h.owned(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	events := h.events[sessionID]
	delete(h.events, sessionID)
	h.mu.Unlock()
	if events == nil {
		events = []sessionEvent{}
	}
	common.RespondWithJSON(w, http.StatusOK, events)
}

func (h *SessionHandler) selectProblem(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := ctrl.SelectProblem(req.Index); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) setLanguage(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := ctrl.SetLanguage(req.Language); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) setCode(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	ctrl.SetCode(req.Code)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) run(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	outcome, err := ctrl.Run(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, outcome)
}

func (h *SessionHandler) submit(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	outcome, err := ctrl.Submit(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, outcome)
}

func (h *SessionHandler) submissions(w http.ResponseWriter, r *http.Request) {
	ctrl, _, ok := h.owned(w, r)
	if !ok {
		return
	}
	common.RespondWithJSON(w, http.StatusOK, ctrl.Submissions(chi.URLParam(r, "problemID")))
}

func (h *SessionHandler) violation(w http.ResponseWriter, r *http.Request) {
	ctrl, sessionID, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := ctrl.ReportViolation(r.Context()); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	h.manager.Release(sessionID)
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "terminated"})
}

func (h *SessionHandler) finish(w http.ResponseWriter, r *http.Request) {
	ctrl, sessionID, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := ctrl.Finish(); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	h.manager.Release(sessionID)
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "finished"})
}

func (h *SessionHandler) leave(w http.ResponseWriter, r *http.Request) {
	_, sessionID, ok := h.owned(w, r)
	if !ok {
		return
	}
	h.manager.Release(sessionID)
	h.mu.Lock()
	delete(h.events, sessionID)
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
