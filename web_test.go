/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/duet/internal/duet"
	"github.com/Seednode/duet/internal/store"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *Config) {
	t.Helper()

	cfg := &Config{port: 8080, category: duet.RandomCategory}
	broker := duet.NewBroker()
	game := &duetGame{
		svc:    duet.NewService(store.NewMemory(), duet.WithNotifier(broker)),
		broker: broker,
	}

	errs := make(chan error, 64)
	go logErrors(errs)

	srv := httptest.NewServer(newRouter(cfg, game, errs))
	t.Cleanup(srv.Close)

	return srv, cfg
}

func postAction(t *testing.T, srv *httptest.Server, req actionRequest) (int, duet.Session, string) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(srv.URL+"/duet/action", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", req.Action, err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode %s: %v", req.Action, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return resp.StatusCode, duet.Session{}, e.Error
	}

	var v duet.Session
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return resp.StatusCode, v, ""
}

func mustAction(t *testing.T, srv *httptest.Server, req actionRequest) duet.Session {
	t.Helper()

	status, v, msg := postAction(t, srv, req)
	if status != http.StatusOK {
		t.Fatalf("%s: status = %d (%s), want 200", req.Action, status, msg)
	}
	return v
}

func TestActionFlow(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	created := mustAction(t, srv, actionRequest{Action: "create", PlayerID: "p1", Category: "musik"})
	if created.Phase != duet.PhaseLobby || created.Player2Map != nil || created.Player1Map == nil {
		t.Fatalf("unexpected created game: %+v", created)
	}

	joined := mustAction(t, srv, actionRequest{Action: "join", PlayerID: "p2", Code: strings.ToUpper(created.Code)})
	if joined.Player1Map != nil || joined.Player2Map == nil {
		t.Fatal("join response leaks player1's map")
	}

	mustAction(t, srv, actionRequest{Action: "ready", PlayerID: "p1", GameID: created.ID})
	started := mustAction(t, srv, actionRequest{Action: "ready", PlayerID: "p2", GameID: created.ID})
	if started.Phase != duet.PhaseSpymaster || started.Turn != duet.Player1 {
		t.Fatalf("phase/turn = %q/%q", started.Phase, started.Turn)
	}

	two := 2
	clued := mustAction(t, srv, actionRequest{Action: "clue", PlayerID: "p1", GameID: created.ID, Clue: "ocean", ClueNumber: &two})
	if clued.Phase != duet.PhaseGuessing || clued.ClueNumber != 2 {
		t.Fatalf("phase/number = %q/%d", clued.Phase, clued.ClueNumber)
	}

	var neutral int
	for i, r := range joined.Player2Map.Roles {
		if r == duet.Neutral {
			neutral = i
			break
		}
	}

	revealed := mustAction(t, srv, actionRequest{Action: "guess", PlayerID: "p2", GameID: created.ID, Guesses: []int{neutral}})
	if revealed.Phase != duet.PhaseReveal || revealed.TurnCount != 1 {
		t.Fatalf("phase/turnCount = %q/%d", revealed.Phase, revealed.TurnCount)
	}

	next := mustAction(t, srv, actionRequest{Action: "next_turn", PlayerID: "p1", GameID: created.ID})
	if next.Phase != duet.PhaseSpymaster || next.Turn != duet.Player2 || next.Clue != nil {
		t.Fatalf("unexpected next turn: %+v", next)
	}

	got := mustAction(t, srv, actionRequest{Action: "get", PlayerID: "p3", GameID: created.ID})
	if got.Player1Map != nil || got.Player2Map != nil {
		t.Fatal("outsider response leaks a map")
	}
}

func TestActionErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	created := mustAction(t, srv, actionRequest{Action: "create", PlayerID: "p1"})
	mustAction(t, srv, actionRequest{Action: "join", PlayerID: "p2", Code: created.Code})

	tests := []struct {
		name   string
		req    actionRequest
		status int
	}{
		{name: "unknown action", req: actionRequest{Action: "explode", PlayerID: "p1"}, status: http.StatusBadRequest},
		{name: "missing game", req: actionRequest{Action: "get", PlayerID: "p1", GameID: "missing"}, status: http.StatusNotFound},
		{name: "unknown code", req: actionRequest{Action: "join", PlayerID: "p3", Code: "zzzzzz"}, status: http.StatusNotFound},
		{name: "full game", req: actionRequest{Action: "join", PlayerID: "p3", Code: created.Code}, status: http.StatusConflict},
		{name: "outsider ready", req: actionRequest{Action: "ready", PlayerID: "p3", GameID: created.ID}, status: http.StatusForbidden},
		{name: "clue in lobby", req: actionRequest{Action: "clue", PlayerID: "p1", GameID: created.ID, Clue: "x"}, status: http.StatusForbidden},
		{name: "next turn in lobby", req: actionRequest{Action: "next_turn", PlayerID: "p1", GameID: created.ID}, status: http.StatusForbidden},
		{name: "unknown category", req: actionRequest{Action: "create", PlayerID: "p1", Category: "nope"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, _, msg := postAction(t, srv, tt.req)
			if status != tt.status {
				t.Fatalf("status = %d (%s), want %d", status, msg, tt.status)
			}
			if msg == "" {
				t.Fatal("error response has no message")
			}
		})
	}
}

func TestActionMalformedBody(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/duet/action", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestActionFallsBackToCookieIdentity(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/duet/action", "application/json", strings.NewReader(`{"action":"create"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == playerCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("no player cookie was set")
	}

	var v duet.Session
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Player1ID != cookie.Value {
		t.Fatalf("player1 = %q, want cookie %q", v.Player1ID, cookie.Value)
	}
}

func TestChangeNotifications(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	created := mustAction(t, srv, actionRequest{Action: "create", PlayerID: "p1"})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/duet/games/" + created.ID + "/ws?playerId=p1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscriptions are registered before the handshake response.
	mustAction(t, srv, actionRequest{Action: "join", PlayerID: "p2", Code: created.Code})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg["type"] != "changed" || msg["game_id"] != created.ID {
		t.Fatalf("message = %v", msg)
	}
	if len(msg) != 2 {
		t.Fatalf("notification carries extra fields: %v", msg)
	}
}

func TestChangeNotificationsUnknownGame(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/duet/games/missing/ws?playerId=p1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %v, want 404", resp)
	}
}

func TestJoinLinkAndQR(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	created := mustAction(t, srv, actionRequest{Action: "create", PlayerID: "p1"})

	resp, err := http.Get(srv.URL + "/duet/join/" + strings.ToUpper(created.Code) + "/qr")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status/type = %d/%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	link, err := http.Get(srv.URL + "/duet/join/" + created.Code)
	if err != nil {
		t.Fatalf("get join link: %v", err)
	}
	defer link.Body.Close()

	var v duet.Session
	if err := json.NewDecoder(link.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Player2ID == "" || v.Player1Map != nil || v.Player2Map == nil {
		t.Fatalf("unexpected join link response: %+v", v)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/duet/categories")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var cats []duet.Category
	if err := json.NewDecoder(resp.Body).Decode(&cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) == 0 || cats[0].Key != duet.RandomCategory {
		t.Fatalf("categories = %v", cats)
	}
}

func TestAmbientEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	for _, path := range []string{"/", "/healthz", "/robots.txt", "/version"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s: missing security headers", path)
		}
	}
}

type fakeDeleter struct {
	cutoff time.Time
	n      int
}

func (f *fakeDeleter) DeleteIdle(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoff = cutoff
	return f.n, nil
}

func TestReapOnce(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	f := &fakeDeleter{n: 3}
	cutoff := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)

	if got := reapOnce(context.Background(), cfg, f, cutoff); got != 3 {
		t.Fatalf("reaped = %d, want 3", got)
	}
	if !f.cutoff.Equal(cutoff) {
		t.Fatalf("cutoff = %v, want %v", f.cutoff, cutoff)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{port: 8080, category: duet.RandomCategory}},
		{name: "bad port", cfg: Config{port: 0, category: duet.RandomCategory}, wantErr: true},
		{name: "half tls", cfg: Config{port: 8080, tlsCert: "cert.pem", category: duet.RandomCategory}, wantErr: true},
		{name: "negative timeout", cfg: Config{port: 8080, sessionTimeout: -time.Second, category: duet.RandomCategory}, wantErr: true},
		{name: "unknown category", cfg: Config{port: 8080, category: "nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := tt.cfg.validate(); (err != nil) != tt.wantErr {
				t.Fatalf("validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	status, msg := statusFor(context.DeadlineExceeded)
	if status != http.StatusInternalServerError || strings.Contains(msg, "deadline") {
		t.Fatalf("status/msg = %d/%q", status, msg)
	}
}
