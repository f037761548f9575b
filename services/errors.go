package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrForbidden        = errors.New("operation not allowed for the current actor")

	// Tournament lifecycle
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrTournamentNotSeeding              = errors.New("tournament is not in seeding")
	ErrTournamentNotLive                 = errors.New("tournament is not live")
	ErrTournamentAlreadyTerminal         = errors.New("tournament is already completed or cancelled")
	ErrParticipantsAlreadyRegistered     = errors.New("participants are already registered for this tournament")

	// Bracket
	ErrBracketAlreadyPublished = errors.New("tournament already has a published bracket")
	ErrBracketNotPublished     = errors.New("tournament has no published bracket")

	// Match state machine
	ErrMatchNotInState      = errors.New("match is not in a state that allows this operation")
	ErrNotAMatchParticipant = errors.New("actor is not a participant of this match")
	ErrAlreadyCheckedIn     = errors.New("participant has already checked in")
	ErrConfirmBySubmitter   = errors.New("the reporting participant cannot confirm their own result")
	ErrInvalidScore         = errors.New("score does not determine the declared winner")
	ErrDrawNotAllowed       = errors.New("draws are not allowed in elimination formats")
	ErrByeMatchImmutable    = errors.New("bye matches resolve automatically and cannot be played")
	ErrMatchAlreadyDisputed = errors.New("match already has an open dispute")
	ErrDisputeWindowClosed  = errors.New("match is not in a disputable state")

	// Settlement
	ErrSettlementNotTriggered = errors.New("tournament has not triggered settlement")
	ErrEscrowMissing          = errors.New("tournament has no escrow to settle from")
)
