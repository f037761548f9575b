package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-core/services"
)

type BracketHandler struct {
	brackets services.BracketService
}

func NewBracketHandler(brackets services.BracketService) *BracketHandler {
	return &BracketHandler{brackets: brackets}
}

func (h *BracketHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		LiveDraw bool  `json:"live_draw"`
		DrawSeed int64 `json:"draw_seed"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.brackets.GenerateAndPublish(r.Context(), services.PublishBracketInput{
		TournamentID: id,
		LiveDraw:     input.LiveDraw,
		DrawSeed:     input.DrawSeed,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		LiveDraw bool  `json:"live_draw"`
		DrawSeed int64 `json:"draw_seed"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	bracket, err := h.brackets.Regenerate(r.Context(), services.PublishBracketInput{
		TournamentID: id,
		LiveDraw:     input.LiveDraw,
		DrawSeed:     input.DrawSeed,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"bracket": bracket}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) GetView(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	view, err := h.brackets.GetBracketView(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"bracket": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
