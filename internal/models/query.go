package models

import "errors"

// ErrDuplicateGame is returned by stores when a game id is already taken.
var ErrDuplicateGame = errors.New("game already exists")

// OrderByCreatedAt is the only ordering stores are required to support.
const OrderByCreatedAt = FieldCreatedAt

// GameQuery filters and orders a read from the "games" collection.
type GameQuery struct {
	Status     GameStatus
	OrderBy    string
	Descending bool

	// Limit caps the number of records; 0 means no limit.
	Limit int
}

// WaitingGamesQuery is the dashboard's read: waiting games, newest first.
func WaitingGamesQuery(limit int) GameQuery {
	return GameQuery{
		Status:     StatusWaiting,
		OrderBy:    OrderByCreatedAt,
		Descending: true,
		Limit:      limit,
	}
}
