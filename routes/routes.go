package routes

import (
	"github.com/Dosada05/tournament-core/handlers"
	"github.com/Dosada05/tournament-core/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Tournament *handlers.TournamentHandler
	Bracket    *handlers.BracketHandler
	Match      *handlers.MatchHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticated := middleware.Authenticate(jwtSecret)
	organizerOnly := middleware.Authorize("organizer", "admin")

	router.Route("/tournaments", func(r chi.Router) {
		// Public read surface.
		r.Get("/{tournamentID}", h.Tournament.Get)
		r.Get("/{tournamentID}/bracket", h.Bracket.GetView)
		r.Get("/{tournamentID}/standings", h.Tournament.GetStandings)
		r.Get("/{tournamentID}/distributions", h.Tournament.ListDistributions)

		// Organizer lifecycle operations.
		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Use(organizerOnly)

			r.Post("/", h.Tournament.Create)
			r.Post("/{tournamentID}/seeding", h.Tournament.OpenSeeding)
			r.Post("/{tournamentID}/participants", h.Tournament.RegisterParticipants)
			r.Post("/{tournamentID}/bracket", h.Bracket.Publish)
			r.Post("/{tournamentID}/bracket/regenerate", h.Bracket.Regenerate)
			r.Post("/{tournamentID}/cancel", h.Tournament.Cancel)
			r.Post("/{tournamentID}/settle", h.Tournament.Settle)

			r.Get("/{tournamentID}/conflicts", h.Tournament.ListConflicts)
			r.Post("/conflicts/{conflictID}/resolve", h.Tournament.ResolveConflict)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Post("/{matchID}/check-in", h.Match.CheckIn)
			r.Post("/{matchID}/result", h.Match.SubmitResult)
			r.Post("/{matchID}/confirm", h.Match.ConfirmResult)
			r.Post("/{matchID}/evidence", h.Match.UploadEvidence)
			r.Post("/{matchID}/disputes", h.Match.OpenDispute)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Use(organizerOnly)

			r.Post("/{matchID}/start", h.Match.Start)
			r.Post("/disputes/{disputeID}/resolve", h.Match.ResolveDispute)
		})
	})

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	return router
}
