package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/ingamehud/internal/api/request"
	"github.com/mcoot/ingamehud/internal/api/response"
	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/services/router"
	"github.com/mcoot/ingamehud/internal/services/session"
	"github.com/mcoot/ingamehud/internal/task"
)

// Caller runs a function on the main loop and waits for it
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// Sessions is the part of the session controller the API reads and drives
type Sessions interface {
	CurrentSettings(id model.PlayerID) model.PlayerSettings
	Phase(id model.PlayerID) session.Phase
	Connected() []model.PlayerID
	OnSettingsCommand(id model.PlayerID, m model.Mutation) (model.PlayerSettings, *task.Task[router.SaveResult], error)
}

// PlayerHandler handles player settings endpoints
type PlayerHandler struct {
	loop     Caller
	sessions Sessions
	timeout  time.Duration
}

// NewPlayerHandler creates a new player handler. timeout bounds both the
// wait for the main loop and the wait for a command's save.
func NewPlayerHandler(loop Caller, sessions Sessions, timeout time.Duration) *PlayerHandler {
	return &PlayerHandler{
		loop:     loop,
		sessions: sessions,
		timeout:  timeout,
	}
}

// List handles GET /api/v1/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var ids []model.PlayerID
	if err := h.loop.Call(ctx, func() { ids = h.sessions.Connected() }); err != nil {
		WriteError(w, err)
		return
	}

	out := response.PlayerList{Players: make([]string, len(ids))}
	for i, id := range ids {
		out.Players[i] = string(id)
	}
	response.JSON(w, http.StatusOK, out)
}

// GetSettings handles GET /api/v1/players/{id}/settings
func (h *PlayerHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	id := model.PlayerID(mux.Vars(r)["id"])

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		settings model.PlayerSettings
		phase    session.Phase
	)
	err := h.loop.Call(ctx, func() {
		settings = h.sessions.CurrentSettings(id)
		phase = h.sessions.Phase(id)
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SettingsFromModel(settings, phase.String()))
}

// ApplyCommand handles POST /api/v1/players/{id}/commands
func (h *PlayerHandler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	id := model.PlayerID(mux.Vars(r)["id"])

	var req request.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Command == "" {
		WriteError(w, NewInvalidRequestError("command is required"))
		return
	}

	m, err := model.ParseMutation(req.Command, req.Arg)
	if err != nil {
		WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		settings model.PlayerSettings
		phase    session.Phase
		save     *task.Task[router.SaveResult]
		cmdErr   error
	)
	err = h.loop.Call(ctx, func() {
		settings, save, cmdErr = h.sessions.OnSettingsCommand(id, m)
		phase = h.sessions.Phase(id)
	})
	if err == nil {
		err = cmdErr
	}
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := save.Wait(ctx)
	response.JSON(w, http.StatusOK, response.CommandResponse{
		Settings: response.SettingsFromModel(settings, phase.String()),
		Saved:    err == nil && res.OK(),
	})
}
