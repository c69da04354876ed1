// internal/handlers/game.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/tambola/internal/auth"
	"github.com/jason-s-yu/tambola/internal/game"
	"github.com/jason-s-yu/tambola/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	msgCreateFailed = "failed to create a new game, please try again"
	msgListFailed   = "failed to load games, please try again"
)

// GameService is what the game handlers need from game.Service.
type GameService interface {
	CreateGame(ctx context.Context, id auth.Identity, in game.CreateGameInput) (*models.Game, error)
	ListWaitingGames(ctx context.Context) ([]*models.Game, error)
}

// ListGamesHandler serves the waiting games, newest first.
func ListGamesHandler(logger *logrus.Logger, svc GameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := svc.ListWaitingGames(r.Context())
		if r.Context().Err() != nil {
			return
		}
		if err != nil {
			logger.WithError(err).Error("failed to list waiting games")
			writeError(w, http.StatusInternalServerError, msgListFailed)
			return
		}
		writeJSON(w, http.StatusOK, games)
	}
}

// CreateGameHandler creates a game hosted by the authenticated caller.
func CreateGameHandler(logger *logrus.Logger, svc GameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFrom(r.Context())

		var in game.CreateGameInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		g, err := svc.CreateGame(r.Context(), id, in)
		if r.Context().Err() != nil {
			return
		}

		var vErr *game.ValidationError
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, g)
		case errors.As(err, &vErr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message, Field: vErr.Field})
		case errors.Is(err, game.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "sign in to create a game")
		default:
			logger.WithFields(logrus.Fields{"host_id": id.UserID, "error": err}).Error("failed to create game")
			writeError(w, http.StatusInternalServerError, msgCreateFailed)
		}
	}
}

// MeHandler returns the caller's identity.
func MeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, id)
}
