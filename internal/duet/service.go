/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	codeLength = 6
	codeChars  = "abcdefghijklmnopqrstuvwxyz0123456789"

	maxCodeAttempts   = 8
	maxUpdateAttempts = 5
)

// Storage errors. Stores wrap ErrNotFound for missing records.
var (
	ErrStale     = errors.New("stale session version")
	ErrCodeTaken = errors.New("join code already in use")
)

// Store is the keyed record store the service persists sessions in.
// Implementations must not retain or hand out the caller's pointers.
type Store interface {
	// Create inserts a new session, failing with ErrCodeTaken if its code
	// is already assigned.
	Create(ctx context.Context, s *Session) error

	Get(ctx context.Context, id string) (*Session, error)

	// GetByCode looks a session up by its lower-case join code.
	GetByCode(ctx context.Context, code string) (*Session, error)

	// Update replaces the session if the stored version still equals
	// expected, and fails with ErrStale otherwise.
	Update(ctx context.Context, s *Session, expected int64) error
}

// Service runs actions against sessions. Every action is one
// read-validate-mutate-persist unit, guarded by a version compare-and-set.
type Service struct {
	store    Store
	notifier Notifier
	category string
	now      func() time.Time

	rngMu sync.Mutex
	rng   *mrand.Rand
}

type Option func(*Service)

// WithNotifier publishes a change signal after every persisted mutation.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithRand uses rng for board generation instead of the shared source.
func WithRand(rng *mrand.Rand) Option {
	return func(s *Service) { s.rng = rng }
}

// WithCategory sets the word category used when Create names none.
func WithCategory(category string) Option {
	return func(s *Service) { s.category = category }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		category: RandomCategory,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do runs a on behalf of playerID and returns the session as playerID may
// see it. A failed action leaves the stored session untouched.
func (s *Service) Do(ctx context.Context, playerID string, a Action) (Session, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return Session{}, errorf(ErrInvalidInput, "player id required")
	}

	switch a := a.(type) {
	case Create:
		return s.create(ctx, playerID, a.Category)
	case Join:
		return s.join(ctx, playerID, a.Code)
	case Get:
		return s.get(ctx, playerID, a.GameID)
	case Ready:
		return s.mutate(ctx, playerID, a.GameID, func(g *Session) (bool, error) {
			return g.Ready(playerID)
		})
	case Clue:
		return s.mutate(ctx, playerID, a.GameID, func(g *Session) (bool, error) {
			return g.GiveClue(playerID, a.Text, a.Number)
		})
	case Guess:
		return s.mutate(ctx, playerID, a.GameID, func(g *Session) (bool, error) {
			return g.Guess(playerID, a.Positions)
		})
	case NextTurn:
		return s.mutate(ctx, playerID, a.GameID, func(g *Session) (bool, error) {
			return g.NextTurn(playerID)
		})
	case nil:
		return Session{}, errorf(ErrInvalidInput, "action required")
	default:
		return Session{}, errorf(ErrInvalidInput, "unsupported action %T", a)
	}
}

func (s *Service) create(ctx context.Context, playerID, category string) (Session, error) {
	if strings.TrimSpace(category) == "" {
		category = s.category
	}
	category = strings.ToLower(strings.TrimSpace(category))

	pool, err := WordPool(category)
	if err != nil {
		return Session{}, err
	}

	s.rngMu.Lock()
	words, err := PickWords(s.rng, pool)
	map1 := GenerateMap(s.rng)
	map2 := GenerateMap(s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return Session{}, err
	}

	for range maxCodeAttempts {
		code, err := NewCode()
		if err != nil {
			return Session{}, err
		}

		g := NewSession(uuid.NewString(), code, category, playerID, words, map1, map2)
		g.Version = 1
		g.CreatedAt = s.now().UTC()
		g.UpdatedAt = g.CreatedAt

		err = s.store.Create(ctx, g)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return Session{}, fmt.Errorf("create game: %w", err)
		}

		return Sanitize(g, playerID), nil
	}

	return Session{}, errorf(ErrConflict, "could not allocate a join code")
}

func (s *Service) join(ctx context.Context, playerID, code string) (Session, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Session{}, errorf(ErrInvalidInput, "join code required")
	}

	g, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return Session{}, notFoundOr(err)
	}

	return s.mutate(ctx, playerID, g.ID, func(g *Session) (bool, error) {
		return g.Join(playerID)
	})
}

func (s *Service) get(ctx context.Context, playerID, id string) (Session, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return Sanitize(g, playerID), nil
}

func (s *Service) load(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errorf(ErrInvalidInput, "game id required")
	}

	g, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return g, nil
}

func (s *Service) mutate(ctx context.Context, playerID, id string, apply func(*Session) (bool, error)) (Session, error) {
	for range maxUpdateAttempts {
		cur, err := s.load(ctx, id)
		if err != nil {
			return Session{}, err
		}

		next := cur.Clone()
		changed, err := apply(next)
		if err != nil {
			return Session{}, err
		}
		if !changed {
			return Sanitize(cur, playerID), nil
		}

		next.Version = cur.Version + 1
		next.UpdatedAt = s.now().UTC()

		err = s.store.Update(ctx, next, cur.Version)
		if errors.Is(err, ErrStale) {
			continue
		}
		if err != nil {
			return Session{}, fmt.Errorf("update game: %w", err)
		}

		if s.notifier != nil {
			s.notifier.Publish(next.ID)
		}

		return Sanitize(next, playerID), nil
	}

	return Session{}, errorf(ErrConflict, "game changed concurrently, try again")
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return errorf(ErrNotFound, "game not found")
	}
	return fmt.Errorf("load game: %w", err)
}

// NewCode returns a random join code.
func NewCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}

// NormalizeCode makes join codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
