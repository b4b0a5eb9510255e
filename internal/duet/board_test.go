/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"testing"
)

func TestGenerateMapCounts(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	seen := make(map[int]bool)

	for i := 0; i < 2000; i++ {
		m := GenerateMap(rng)

		if m.AgentCount < 6 || m.AgentCount > 9 {
			t.Fatalf("agentCount = %d, want 6..9", m.AgentCount)
		}
		if got := m.Count(Agent); got != m.AgentCount {
			t.Fatalf("agents = %d, want %d", got, m.AgentCount)
		}
		if got := m.Count(Assassin); got != Assassins {
			t.Fatalf("assassins = %d, want %d", got, Assassins)
		}
		if got := m.Count(Neutral); got != BoardSize-m.AgentCount-Assassins {
			t.Fatalf("neutrals = %d, want %d", got, BoardSize-m.AgentCount-Assassins)
		}
		seen[m.AgentCount] = true
	}

	for n := 6; n <= 9; n++ {
		if !seen[n] {
			t.Fatalf("agent count %d never drawn", n)
		}
	}
}

func TestGenerateMapSharedSource(t *testing.T) {
	t.Parallel()

	m := GenerateMap(nil)
	if got := m.Count(Agent) + m.Count(Assassin) + m.Count(Neutral); got != BoardSize {
		t.Fatalf("roles assigned = %d, want %d", got, BoardSize)
	}
}

func TestGenerateMapSpreadsRoles(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 7))
	var assassinHits [BoardSize]int
	const runs = 5000

	for i := 0; i < runs; i++ {
		m := GenerateMap(rng)
		for pos, role := range m.Roles {
			if role == Assassin {
				assassinHits[pos]++
			}
		}
	}

	// Each position is an assassin with probability 3/25 under a uniform shuffle.
	want := runs * Assassins / BoardSize
	for pos, n := range assassinHits {
		if n < want/2 || n > want*2 {
			t.Fatalf("position %d was an assassin %d times, want about %d", pos, n, want)
		}
	}
}

func TestPickWordsDistinct(t *testing.T) {
	t.Parallel()

	pool, err := WordPool(RandomCategory)
	if err != nil {
		t.Fatalf("word pool: %v", err)
	}

	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 200; i++ {
		words, err := PickWords(rng, pool)
		if err != nil {
			t.Fatalf("pick words: %v", err)
		}
		if len(words) != BoardSize {
			t.Fatalf("len(words) = %d, want %d", len(words), BoardSize)
		}

		seen := make(map[string]bool, len(words))
		for _, w := range words {
			if seen[w] {
				t.Fatalf("duplicate word %q in %v", w, words)
			}
			seen[w] = true
		}
	}
}

func TestPickWordsCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	var pool []string
	for i := 0; i < BoardSize; i++ {
		w := "w" + strconv.Itoa(i)
		pool = append(pool, w, w)
	}

	words, err := PickWords(nil, pool)
	if err != nil {
		t.Fatalf("pick words: %v", err)
	}

	seen := make(map[string]bool)
	for _, w := range words {
		if seen[w] {
			t.Fatalf("duplicate word %q", w)
		}
		seen[w] = true
	}
}

func TestPickWordsRejectsSmallPool(t *testing.T) {
	t.Parallel()

	pool := make([]string, 0, BoardSize)
	for i := 0; i < BoardSize-1; i++ {
		pool = append(pool, "w"+strconv.Itoa(i))
	}
	pool = append(pool, "w0")

	if _, err := PickWords(nil, pool); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidInput)
	}
}

func TestPickWordsDoesNotModifyPool(t *testing.T) {
	t.Parallel()

	pool, err := WordPool("tiere")
	if err != nil {
		t.Fatalf("word pool: %v", err)
	}
	before := append([]string(nil), pool...)

	if _, err := PickWords(rand.New(rand.NewPCG(9, 9)), pool); err != nil {
		t.Fatalf("pick words: %v", err)
	}

	for i := range pool {
		if pool[i] != before[i] {
			t.Fatalf("pool[%d] = %q, want %q", i, pool[i], before[i])
		}
	}
}
