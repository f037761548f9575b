package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/services"
	"github.com/Dosada05/tournament-core/storage"
	"github.com/Dosada05/tournament-core/utils"
)

const maxEvidenceSize = 10 << 20 // 10MB

type MatchHandler struct {
	matches  services.MatchService
	uploader storage.FileUploader
}

func NewMatchHandler(matches services.MatchService, uploader storage.FileUploader) *MatchHandler {
	return &MatchHandler{matches: matches, uploader: uploader}
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	m, err := h.matches.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		ParticipantID int `json:"participant_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	m, err := h.matches.CheckIn(r.Context(), id, input.ParticipantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	m, err := h.matches.Start(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		ReporterParticipantID int     `json:"reporter_participant_id"`
		ScoreA                int     `json:"score_a"`
		ScoreB                int     `json:"score_b"`
		WinnerParticipantID   int     `json:"winner_participant_id"`
		EvidenceKey           *string `json:"evidence_key,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	m, err := h.matches.SubmitResult(r.Context(), services.SubmitResultInput{
		MatchID:               id,
		ReporterParticipantID: input.ReporterParticipantID,
		ScoreA:                input.ScoreA,
		ScoreB:                input.ScoreB,
		WinnerParticipantID:   input.WinnerParticipantID,
		EvidenceKey:           input.EvidenceKey,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ConfirmResult(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		ParticipantID int `json:"participant_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	m, err := h.matches.ConfirmResult(r.Context(), id, input.ParticipantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadEvidence stores a screenshot or replay and answers with the key
// to reference in a result submission or dispute.
func (h *MatchHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEvidenceSize)
	if err := r.ParseMultipartForm(maxEvidenceSize); err != nil {
		badRequestResponse(w, r, fmt.Errorf("evidence must not exceed %d bytes", maxEvidenceSize))
		return
	}
	file, header, err := r.FormFile("evidence")
	if err != nil {
		badRequestResponse(w, r, fmt.Errorf("missing evidence file: %w", err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		badRequestResponse(w, r, fmt.Errorf("unsupported evidence content type %q", contentType))
		return
	}

	key := fmt.Sprintf("evidence/match_%d/%s%s", id, utils.NewID(), filepath.Ext(header.Filename))
	result, err := h.uploader.Upload(r.Context(), key, contentType, file)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{
		"evidence_key": result.Key,
		"url":          result.Location,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		FilerParticipantID int     `json:"filer_participant_id"`
		Claim              string  `json:"claim"`
		EvidenceKey        *string `json:"evidence_key,omitempty"`
		ClaimedWinnerID    *int    `json:"claimed_winner_id,omitempty"`
		ClaimedScoreA      *int    `json:"claimed_score_a,omitempty"`
		ClaimedScoreB      *int    `json:"claimed_score_b,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	d, err := h.matches.OpenDispute(r.Context(), services.OpenDisputeInput{
		MatchID:            id,
		FilerParticipantID: input.FilerParticipantID,
		Claim:              input.Claim,
		EvidenceKey:        input.EvidenceKey,
		ClaimedWinnerID:    input.ClaimedWinnerID,
		ClaimedScoreA:      input.ClaimedScoreA,
		ClaimedScoreB:      input.ClaimedScoreB,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"dispute": d}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	disputeID, err := idParam(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		Resolution       models.DisputeResolution `json:"resolution"`
		ResolverRef      string                   `json:"resolver_ref"`
		OverrideWinnerID *int                     `json:"override_winner_id,omitempty"`
		OverrideScoreA   *int                     `json:"override_score_a,omitempty"`
		OverrideScoreB   *int                     `json:"override_score_b,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	m, err := h.matches.ResolveDispute(r.Context(), services.ResolveDisputeInput{
		DisputeID:        disputeID,
		Resolution:       input.Resolution,
		ResolverRef:      input.ResolverRef,
		OverrideWinnerID: input.OverrideWinnerID,
		OverrideScoreA:   input.OverrideScoreA,
		OverrideScoreB:   input.OverrideScoreB,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": m}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
