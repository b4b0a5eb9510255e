/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

// Action is one request against the game. The set of variants is closed.
type Action interface {
	action() string
}

// Create opens a new session. An empty Category uses the service default.
type Create struct {
	Category string
}

// Join takes the second seat of the session with the given code.
type Join struct {
	Code string
}

// Get reads a session.
type Get struct {
	GameID string
}

// Ready marks the caller ready in the lobby.
type Ready struct {
	GameID string
}

// Clue gives a clue. A nil Number means 1.
type Clue struct {
	GameID string
	Text   string
	Number *int
}

// Guess submits a batch of board positions.
type Guess struct {
	GameID    string
	Positions []int
}

// NextTurn moves from reveal to the other player's clue.
type NextTurn struct {
	GameID string
}

func (Create) action() string   { return "create" }
func (Join) action() string     { return "join" }
func (Get) action() string      { return "get" }
func (Ready) action() string    { return "ready" }
func (Clue) action() string     { return "clue" }
func (Guess) action() string    { return "guess" }
func (NextTurn) action() string { return "next_turn" }

// Name returns the wire name of a.
func Name(a Action) string {
	return a.action()
}
