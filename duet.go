// Duet game transport
//
// Two players share a board of 25 words. Each privately knows which words are
// agents on their own map; they take turns giving one-word clues and guessing
// until both maps are cleared, an assassin is hit, or the turn budget runs out.
//
// Features:
// - One JSON endpoint for every game action: /path/action
// - Player identified by the request's playerId, or by cookie (duet_id)
// - Every response is sanitized for the requesting player
// - WebSocket per game ID: /path/games/:gameid/ws, carrying bare change signals
// - QR code for the join link of a game: /path/join/:code/qr, backed by go-qrcode

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Seednode/duet/internal/duet"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	playerCookieName = "duet_id"
	maxActionBytes   = 16 << 10

	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod
	writeWait  = 10 * time.Second
)

// duetGame is what the handlers need from the core.
type duetGame struct {
	svc    *duet.Service
	broker *duet.Broker
}

// actionRequest is the wire form of every action.
type actionRequest struct {
	Action     string `json:"action"`
	GameID     string `json:"gameId,omitempty"`
	Code       string `json:"code,omitempty"`
	PlayerID   string `json:"playerId,omitempty"`
	Clue       string `json:"clue,omitempty"`
	ClueNumber *int   `json:"clueNumber,omitempty"`
	Guesses    []int  `json:"guesses,omitempty"`
	Category   string `json:"category,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// changeMessage tells a subscriber to re-read the game. It never carries state.
type changeMessage struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
}

// toAction decodes the action tag into one of the core's action variants.
func (req actionRequest) toAction() (duet.Action, bool) {
	switch req.Action {
	case "create":
		return duet.Create{Category: req.Category}, true
	case "join":
		return duet.Join{Code: req.Code}, true
	case "get":
		return duet.Get{GameID: req.GameID}, true
	case "ready":
		return duet.Ready{GameID: req.GameID}, true
	case "clue":
		return duet.Clue{GameID: req.GameID, Text: req.Clue, Number: req.ClueNumber}, true
	case "guess":
		return duet.Guess{GameID: req.GameID, Positions: req.Guesses}, true
	case "next_turn":
		return duet.NextTurn{GameID: req.GameID}, true
	default:
		return nil, false
	}
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(body)
}

func serveAction(cfg *Config, game *duetGame, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req actionRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxActionBytes))
		if err := dec.Decode(&req); err != nil {
			if _, err := writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "invalid request body"}); err != nil {
				errs <- err
			}
			return
		}

		action, ok := req.toAction()
		if !ok {
			if _, err := writeJSON(cfg, w, http.StatusBadRequest, errorResponse{Error: "unknown action"}); err != nil {
				errs <- err
			}
			return
		}

		playerID := strings.TrimSpace(req.PlayerID)
		if playerID == "" {
			playerID = getOrSetPlayerID(w, r)
		}

		view, err := game.svc.Do(r.Context(), playerID, action)
		if err != nil {
			status, msg := statusFor(err)
			if status == http.StatusInternalServerError {
				log.Error().Err(err).Str("action", req.Action).Str("game", req.GameID).Msg("GAMES: action failed")
			}

			if _, err := writeJSON(cfg, w, status, errorResponse{Error: msg}); err != nil {
				errs <- err
			}

			logf(cfg, "GAMES: %s by %s rejected (%s) in %s", req.Action, realIP(r), duet.KindOf(err), time.Since(startTime).Round(time.Microsecond))

			return
		}

		written, err := writeJSON(cfg, w, http.StatusOK, view)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "GAMES: %s on %s (%s) by %s in %s",
			duet.Name(action),
			view.ID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveJoinLink joins the game behind a shared link as the cookie's player.
func serveJoinLink(cfg *Config, game *duetGame, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)

		view, err := game.svc.Do(r.Context(), playerID, duet.Join{Code: ps.ByName("code")})
		if err != nil {
			status, msg := statusFor(err)
			if _, err := writeJSON(cfg, w, status, errorResponse{Error: msg}); err != nil {
				errs <- err
			}
			return
		}

		if _, err := writeJSON(cfg, w, http.StatusOK, view); err != nil {
			errs <- err

			return
		}

		logf(cfg, "GAMES: %s joined %s via link", realIP(r), view.ID)
	}
}

func serveCategories(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if _, err := writeJSON(cfg, w, http.StatusOK, duet.Categories()); err != nil {
			errs <- err
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveChanges upgrades to a websocket that receives a change signal each
// time the game is persisted. Clients re-issue "get" to see the new state.
func serveChanges(cfg *Config, game *duetGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		playerID := r.URL.Query().Get("playerId")
		if playerID == "" {
			playerID = getOrSetPlayerID(w, r)
		}

		if _, err := game.svc.Do(r.Context(), playerID, duet.Get{GameID: gameID}); err != nil {
			status, msg := statusFor(err)
			http.Error(w, msg, status)
			return
		}

		changes, cancel := game.broker.Subscribe(gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cancel()
			log.Error().Err(err).Msg("GAMES: websocket upgrade failed")
			return
		}

		logf(cfg, "GAMES: %s subscribed to %s", realIP(r), gameID)

		done := make(chan struct{})
		go readPump(conn, done)
		writePump(conn, gameID, changes, done)

		cancel()
		_ = conn.Close()
	}
}

// readPump discards client frames and closes done once the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, gameID string, changes <-chan struct{}, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(changeMessage{Type: "changed", GameID: gameID}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// QR handler: generates a PNG QR code for joining the game with this code.
func qrHandler(cfg *Config, path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := duet.NormalizeCode(ps.ByName("code"))
		if code == "" {
			http.Error(w, "missing join code", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + path + "/join/" + code

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerDuetGame sets up routes so that:
//   - $path/action            → JSON action endpoint
//   - $path/categories        → word categories
//   - $path/games/:gameid/ws  → change signals for that game
//   - $path/join/:code        → join link (cookie identity)
//   - $path/join/:code/qr     → PNG QR code for the join link
func registerDuetGame(cfg *Config, path string, mux *httprouter.Router, game *duetGame, errs chan<- error) {
	mux.POST(cfg.prefix+path+"/action", serveAction(cfg, game, errs))

	mux.GET(cfg.prefix+path+"/categories", serveCategories(cfg, errs))

	mux.GET(cfg.prefix+path+"/games/:gameid/ws", serveChanges(cfg, game))

	mux.GET(cfg.prefix+path+"/join/:code", serveJoinLink(cfg, game, errs))

	mux.GET(cfg.prefix+path+"/join/:code/qr", qrHandler(cfg, path))
}
