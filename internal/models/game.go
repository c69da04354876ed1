// internal/models/game.go
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a game record.
type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting"
	StatusInProgress GameStatus = "inProgress"
	StatusCompleted  GameStatus = "completed"
	StatusCancelled  GameStatus = "cancelled"
	StatusHold       GameStatus = "hold"
)

// Valid reports whether s is one of the known statuses.
func (s GameStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusCancelled, StatusHold:
		return true
	}
	return false
}

// ParseGameStatus converts a stored status string into a GameStatus.
func ParseGameStatus(s string) (GameStatus, error) {
	st := GameStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown game status %q", s)
	}
	return st, nil
}

// WinType is one of the recognized ways to win a game.
type WinType string

const (
	WinEarlyFive   WinType = "earlyFive"
	WinFirstRow    WinType = "firstRow"
	WinSecondRow   WinType = "secondRow"
	WinThirdRow    WinType = "thirdRow"
	WinFourCorners WinType = "fourCorners"
	WinFullHouse   WinType = "fullHouse"
)

// AllWinTypes lists every win category in display order.
var AllWinTypes = []WinType{
	WinEarlyFive,
	WinFirstRow,
	WinSecondRow,
	WinThirdRow,
	WinFourCorners,
	WinFullHouse,
}

// Valid reports whether w is one of AllWinTypes.
func (w WinType) Valid() bool {
	for _, wt := range AllWinTypes {
		if w == wt {
			return true
		}
	}
	return false
}

// DefaultStartDelay is how far in the future a freshly created game is scheduled.
const DefaultStartDelay = 2 * time.Hour

// Game is one playable session with its configuration, roster and outcome state.
//
// CalledNumbers, Winners, WinnersByType, PlayerStrikes and PlayerTicketCount are
// populated by the game engine; this service only carries them.
type Game struct {
	ID          string     `json:"id"`
	HostID      string     `json:"hostId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      GameStatus `json:"status"`

	CalledNumbers []int    `json:"calledNumbers"`
	Players       []string `json:"players"`
	Winners       []string `json:"winners"`

	CreatedAt time.Time `json:"createdAt"`

	WinnersByType     map[WinType][]string `json:"winnersByType"`
	PlayerStrikes     map[string]int       `json:"playerStrikes"`
	PlayerTicketCount map[string]int       `json:"playerTicketCount"`

	TicketCount    int       `json:"ticketCount"`
	TicketPrice    float64   `json:"ticketPrice"`
	TicketCurrency string    `json:"ticketCurrency"`
	StartTime      time.Time `json:"startTime"`
	TicketLimit    int       `json:"ticketLimit"`

	PrizeDistribution PrizeDistribution `json:"prizeDistribution"`
}

// NewGameWithDefaults builds a waiting game hosted by hostID.
//
// Defaults applied:
//
// - `Name`: "Tambola"
// - `TicketPrice`: `2.0` in "$"
// - `TicketLimit`: `10`
// - `StartTime`: now + 2h
// - `PrizeDistribution`: 20% platform, 50% full house, 7% four corners, 36% rows, 7% early five
//
// The default prize distribution does not pass Validate; callers overwrite it from the
// creation form before persisting.
func NewGameWithDefaults(hostID string, now time.Time) *Game {
	gameID, _ := uuid.NewV7()

	return &Game{
		ID:                gameID.String(),
		HostID:            hostID,
		Name:              "Tambola",
		Description:       "Play Tambola and win exciting prizes",
		Status:            StatusWaiting,
		CalledNumbers:     []int{},
		Players:           []string{hostID},
		Winners:           []string{},
		CreatedAt:         now,
		WinnersByType:     emptyWinners(),
		PlayerStrikes:     map[string]int{},
		PlayerTicketCount: map[string]int{},
		TicketCount:       0,
		TicketPrice:       2.0,
		TicketCurrency:    "$",
		StartTime:         now.Add(DefaultStartDelay),
		TicketLimit:       10,
		PrizeDistribution: DefaultPrizeDistribution(),
	}
}

// HasPlayer reports whether userID has joined the game.
func (g *Game) HasPlayer(userID string) bool {
	for _, p := range g.Players {
		if p == userID {
			return true
		}
	}
	return false
}

// CanJoin reports whether the roster is still below the ticket limit.
func (g *Game) CanJoin() bool {
	return len(g.Players) < g.TicketLimit
}

func emptyWinners() map[WinType][]string {
	m := make(map[WinType][]string, len(AllWinTypes))
	for _, wt := range AllWinTypes {
		m[wt] = []string{}
	}
	return m
}
