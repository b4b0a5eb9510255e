/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

import "math/rand/v2"

const (
	// BoardSize is the number of cards on the shared board.
	BoardSize = 25

	// Assassins is the number of assassin cards on every map.
	Assassins = 3

	minAgents = 6
	maxAgents = 9
)

// Role is what a board position means on one player's private map.
type Role string

const (
	Agent    Role = "agent"
	Assassin Role = "assassin"
	Neutral  Role = "neutral"
)

// Map is one player's private key card.
type Map struct {
	Roles      [BoardSize]Role `json:"roles"`
	AgentCount int             `json:"agentCount"`
}

// Count returns how many positions on the map carry role r.
func (m *Map) Count(r Role) int {
	n := 0
	for _, role := range m.Roles {
		if role == r {
			n++
		}
	}
	return n
}

// GenerateMap draws an agent count from 6 to 9 and assigns agents, then
// assassins, then neutrals along a uniform permutation of the board.
// A nil rng uses the shared math/rand/v2 source.
func GenerateMap(rng *rand.Rand) Map {
	agents := minAgents + intN(rng, maxAgents-minAgents+1)

	order := make([]int, BoardSize)
	for i := range order {
		order[i] = i
	}
	shuffle(rng, len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	m := Map{AgentCount: agents}
	for n, pos := range order {
		switch {
		case n < agents:
			m.Roles[pos] = Agent
		case n < agents+Assassins:
			m.Roles[pos] = Assassin
		default:
			m.Roles[pos] = Neutral
		}
	}

	return m
}

// PickWords draws BoardSize distinct words from pool without replacement.
// Duplicate entries in pool are collapsed first.
func PickWords(rng *rand.Rand, pool []string) ([]string, error) {
	seen := make(map[string]bool, len(pool))
	words := make([]string, 0, len(pool))
	for _, w := range pool {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}

	if len(words) < BoardSize {
		return nil, errorf(ErrInvalidInput, "word pool has %d distinct entries, need %d", len(words), BoardSize)
	}

	shuffle(rng, len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})

	return words[:BoardSize:BoardSize], nil
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

// shuffle is a Fisher-Yates shuffle.
func shuffle(rng *rand.Rand, n int, swap func(i, j int)) {
	if rng == nil {
		rand.Shuffle(n, swap)
		return
	}
	rng.Shuffle(n, swap)
}
