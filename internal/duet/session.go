/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// MaxTurns is the number of guess batches the players get to clear both maps.
const MaxTurns = 7

// Player names a seat in a session.
type Player string

const (
	Player1 Player = "player1"
	Player2 Player = "player2"
)

// Other returns the opposite seat.
func (p Player) Other() Player {
	if p == Player1 {
		return Player2
	}
	return Player1
}

// Phase is the state of a session.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseSpymaster Phase = "spymaster"
	PhaseGuessing  Phase = "guessing"
	PhaseReveal    Phase = "reveal"
	PhaseFinished  Phase = "finished"
)

// Outcome is the cooperative result of a finished session.
type Outcome string

const (
	Won  Outcome = "won"
	Lost Outcome = "lost"
)

// RevealResult is the guesser-map role of one guessed position.
type RevealResult struct {
	Index int  `json:"index"`
	Role  Role `json:"role"`
}

// Session is the full persisted record of one game, including both
// private maps. It must pass through Sanitize before leaving the server.
type Session struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	Category      string         `json:"category"`
	Player1ID     string         `json:"player1_id"`
	Player2ID     string         `json:"player2_id"`
	Player1Ready  bool           `json:"player1_ready"`
	Player2Ready  bool           `json:"player2_ready"`
	Words         []string       `json:"words"`
	Player1Map    *Map           `json:"player1_map"`
	Player2Map    *Map           `json:"player2_map"`
	Turn          Player         `json:"turn"`
	Phase         Phase          `json:"phase"`
	Clue          *string        `json:"clue"`
	ClueNumber    int            `json:"clue_number"`
	Guesses       []int          `json:"guesses"`
	FoundPlayer1  []int          `json:"found_player1"`
	FoundPlayer2  []int          `json:"found_player2"`
	RevealResults []RevealResult `json:"reveal_results"`
	HitAssassin   bool           `json:"hit_assassin"`
	TurnCount     int            `json:"turn_count"`
	Winner        *Outcome       `json:"winner"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewSession returns a lobby owned by player1.
func NewSession(id, code, category, player1 string, words []string, map1, map2 Map) *Session {
	return &Session{
		ID:            id,
		Code:          code,
		Category:      category,
		Player1ID:     player1,
		Words:         words,
		Player1Map:    &map1,
		Player2Map:    &map2,
		Turn:          Player1,
		Phase:         PhaseLobby,
		ClueNumber:    1,
		Guesses:       []int{},
		FoundPlayer1:  []int{},
		FoundPlayer2:  []int{},
		RevealResults: []RevealResult{},
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Words = slices.Clone(s.Words)
	c.Guesses = slices.Clone(s.Guesses)
	c.FoundPlayer1 = slices.Clone(s.FoundPlayer1)
	c.FoundPlayer2 = slices.Clone(s.FoundPlayer2)
	c.RevealResults = slices.Clone(s.RevealResults)
	if s.Player1Map != nil {
		m := *s.Player1Map
		c.Player1Map = &m
	}
	if s.Player2Map != nil {
		m := *s.Player2Map
		c.Player2Map = &m
	}
	if s.Clue != nil {
		clue := *s.Clue
		c.Clue = &clue
	}
	if s.Winner != nil {
		w := *s.Winner
		c.Winner = &w
	}
	return &c
}

// SeatOf reports which seat playerID occupies.
func (s *Session) SeatOf(playerID string) (Player, bool) {
	switch {
	case playerID == "":
		return "", false
	case playerID == s.Player1ID:
		return Player1, true
	case playerID == s.Player2ID:
		return Player2, true
	default:
		return "", false
	}
}

// MapOf returns the private map of a seat.
func (s *Session) MapOf(p Player) *Map {
	if p == Player1 {
		return s.Player1Map
	}
	return s.Player2Map
}

// FoundFor returns the positions confirmed as agents on p's map.
func (s *Session) FoundFor(p Player) []int {
	if p == Player1 {
		return s.FoundPlayer1
	}
	return s.FoundPlayer2
}

func (s *Session) isFound(pos int) bool {
	return slices.Contains(s.FoundPlayer1, pos) || slices.Contains(s.FoundPlayer2, pos)
}

func (s *Session) seat(playerID string) (Player, error) {
	p, ok := s.SeatOf(playerID)
	if !ok {
		return "", errorf(ErrForbidden, "not a player in this game")
	}
	return p, nil
}

func (s *Session) requirePhase(want Phase) error {
	if s.Phase != want {
		return errorf(ErrForbidden, "game is in %s phase, not %s", s.Phase, want)
	}
	return nil
}

// Each transition below validates completely before it mutates anything, and
// reports whether the record changed.

// Join seats playerID as player2 if the seat is free.
func (s *Session) Join(playerID string) (bool, error) {
	if _, ok := s.SeatOf(playerID); ok {
		return false, nil
	}
	if s.Player2ID != "" {
		return false, errorf(ErrConflict, "game is full")
	}

	s.Player2ID = playerID

	return true, nil
}

// Ready marks playerID ready, and starts the game once both seats are ready.
func (s *Session) Ready(playerID string) (bool, error) {
	p, err := s.seat(playerID)
	if err != nil {
		return false, err
	}

	flag := &s.Player1Ready
	if p == Player2 {
		flag = &s.Player2Ready
	}
	if *flag {
		return false, nil
	}
	if err := s.requirePhase(PhaseLobby); err != nil {
		return false, err
	}

	*flag = true
	if s.Player1Ready && s.Player2Ready {
		s.Phase = PhaseSpymaster
		s.Turn = Player1
	}

	return true, nil
}

// GiveClue records the turn holder's clue. A nil number means 1.
func (s *Session) GiveClue(playerID, clue string, number *int) (bool, error) {
	p, err := s.seat(playerID)
	if err != nil {
		return false, err
	}
	if err := s.requirePhase(PhaseSpymaster); err != nil {
		return false, err
	}
	if p != s.Turn {
		return false, errorf(ErrForbidden, "not your turn to give a clue")
	}

	clue = strings.TrimSpace(clue)
	if clue == "" {
		return false, errorf(ErrInvalidInput, "clue required")
	}

	n := 1
	if number != nil {
		n = *number
	}

	s.Clue = &clue
	s.ClueNumber = n
	s.Phase = PhaseGuessing

	return true, nil
}

// Guess evaluates a batch of positions against the guesser's own map.
func (s *Session) Guess(playerID string, positions []int) (bool, error) {
	p, err := s.seat(playerID)
	if err != nil {
		return false, err
	}
	if err := s.requirePhase(PhaseGuessing); err != nil {
		return false, err
	}
	if p != s.Turn.Other() {
		return false, errorf(ErrForbidden, "not your turn to guess")
	}
	if len(positions) == 0 {
		return false, errorf(ErrInvalidInput, "no guesses")
	}

	batch := make(map[int]bool, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= BoardSize {
			return false, errorf(ErrInvalidInput, "invalid card index %d", pos)
		}
		if s.isFound(pos) {
			return false, errorf(ErrInvalidInput, "card %d already found", pos)
		}
		if batch[pos] {
			return false, errorf(ErrInvalidInput, "card %d guessed twice", pos)
		}
		batch[pos] = true
	}

	m := s.MapOf(p)
	if m == nil {
		return false, fmt.Errorf("map for %s is missing", p)
	}

	found := slices.Clone(s.FoundFor(p))
	results := make([]RevealResult, 0, len(positions))
	assassin := false
	for _, pos := range positions {
		role := m.Roles[pos]
		results = append(results, RevealResult{Index: pos, Role: role})
		switch role {
		case Agent:
			if !slices.Contains(found, pos) {
				found = append(found, pos)
			}
		case Assassin:
			assassin = true
		}
	}

	if p == Player1 {
		s.FoundPlayer1 = found
	} else {
		s.FoundPlayer2 = found
	}
	s.Guesses = slices.Clone(positions)
	s.RevealResults = results
	s.HitAssassin = s.HitAssassin || assassin
	s.TurnCount++
	s.evaluate()

	return true, nil
}

// evaluate settles the game after a guess batch. An assassin beats a
// simultaneous clear of both maps.
func (s *Session) evaluate() {
	var outcome Outcome
	switch {
	case s.HitAssassin:
		outcome = Lost
	case len(s.FoundPlayer1) >= s.Player1Map.AgentCount && len(s.FoundPlayer2) >= s.Player2Map.AgentCount:
		outcome = Won
	case s.TurnCount >= MaxTurns:
		outcome = Lost
	default:
		s.Phase = PhaseReveal
		return
	}

	s.Phase = PhaseFinished
	s.Winner = &outcome
}

// NextTurn hands the clue role to the other player after a reveal.
func (s *Session) NextTurn(playerID string) (bool, error) {
	if _, err := s.seat(playerID); err != nil {
		return false, err
	}
	if err := s.requirePhase(PhaseReveal); err != nil {
		return false, err
	}

	s.Turn = s.Turn.Other()
	s.Clue = nil
	s.ClueNumber = 1
	s.Guesses = []int{}
	s.RevealResults = []RevealResult{}
	s.Phase = PhaseSpymaster

	return true, nil
}
