package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/tournament-core/models"
	"github.com/Dosada05/tournament-core/services"
)

type TournamentHandler struct {
	tournaments services.TournamentService
	progression services.ProgressionService
	settlement  services.SettlementService
}

func NewTournamentHandler(
	tournaments services.TournamentService,
	progression services.ProgressionService,
	settlement services.SettlementService,
) *TournamentHandler {
	return &TournamentHandler{
		tournaments: tournaments,
		progression: progression,
		settlement:  settlement,
	}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name            string               `json:"name"`
		Game            string               `json:"game"`
		OrganizerRef    string               `json:"organizer_ref"`
		Format          models.BracketFormat `json:"format"`
		MaxParticipants int                  `json:"max_participants"`
		EntryFee        int64                `json:"entry_fee"`
		PrizePool       int64                `json:"prize_pool"`
		PrizeScheme     []models.PrizeTier   `json:"prize_scheme,omitempty"`
		Config          *models.FormatConfig `json:"config,omitempty"`
		StartDate       time.Time            `json:"start_date"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournaments.Create(r.Context(), services.CreateTournamentInput{
		Name:            input.Name,
		Game:            input.Game,
		OrganizerRef:    input.OrganizerRef,
		Format:          input.Format,
		MaxParticipants: input.MaxParticipants,
		EntryFee:        input.EntryFee,
		PrizePool:       input.PrizePool,
		PrizeScheme:     input.PrizeScheme,
		Config:          input.Config,
		StartDate:       input.StartDate,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	t, err := h.tournaments.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) OpenSeeding(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.tournaments.OpenSeeding(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": models.StatusSeeding}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) RegisterParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		EscrowID     string `json:"escrow_id"`
		Participants []struct {
			Seed       int    `json:"seed"`
			DisplayRef string `json:"display_ref"`
			AccountRef string `json:"account_ref"`
		} `json:"participants"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	entries := make([]services.RegisterEntry, 0, len(input.Participants))
	for _, p := range input.Participants {
		entries = append(entries, services.RegisterEntry{
			Seed:       p.Seed,
			DisplayRef: p.DisplayRef,
			AccountRef: p.AccountRef,
		})
	}

	if err := h.tournaments.RegisterParticipants(r.Context(), id, input.EscrowID, entries); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registered": len(entries)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.tournaments.Cancel(r.Context(), id, input.Reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": models.StatusCancelled}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := h.progression.GetStandings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	conflicts, err := h.progression.ListOpenConflicts(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"conflicts": conflicts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	conflictID, err := idParam(r, "conflictID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.progression.ResolveConflict(r.Context(), conflictID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"resolved": true}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListDistributions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	distributions, err := h.settlement.ListDistributions(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"distributions": distributions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Settle re-runs payouts for a completed tournament. The engine is
// idempotent, so organizers can safely poke a stuck settlement.
func (h *TournamentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.settlement.Settle(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusAccepted, jsonResponse{"settlement": "running"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
