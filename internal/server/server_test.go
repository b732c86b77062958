package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/contacthub/contacthub/internal/config"
	"github.com/contacthub/contacthub/internal/graph"
	"github.com/contacthub/contacthub/internal/identity"
	"github.com/contacthub/contacthub/internal/notify"
	"github.com/contacthub/contacthub/internal/relay"
	"github.com/contacthub/contacthub/internal/store"
	"github.com/contacthub/contacthub/internal/store/memory"
)

type testEnv struct {
	server *Server
	t      *testing.T
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := memory.NewDriver(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	transport, err := notify.NewTransport("log", map[string]any{}, logger)
	if err != nil {
		t.Fatalf("open transport: %v", err)
	}
	dispatcher := notify.NewDispatcher(transport, logger, 32)
	t.Cleanup(dispatcher.Close)

	tokens := identity.NewTokenIssuer([]byte("test-secret"), time.Hour)
	provider := identity.NewLocalProvider(db, identity.NewUserAuthFast(), tokens)
	g := graph.New(db, provider, dispatcher, logger)

	cfg := config.DefaultConfig()
	srv, err := New(cfg, logger, &Deps{
		Provider:   provider,
		Graph:      g,
		Relay:      relay.New(g, dispatcher, logger),
		Dispatcher: dispatcher,
		Transport:  transport,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &testEnv{server: srv, t: t}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// registerAndLogin creates a user and returns its identity and token.
func (e *testEnv) registerAndLogin(email, name string) (identity.Identity, string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "longenough", "displayName": name,
	})
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}

	rec = e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "longenough",
	})
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	resp := decodeBody[struct {
		Token string            `json:"token"`
		User  identity.Identity `json:"user"`
	}](e.t, rec)
	return resp.User, resp.Token
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestUserRoutes_RequireAuth(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{
		"/api/v1/user/contacts",
		"/api/v1/user/getConnectionRequests",
	} {
		rec := e.do(http.MethodGet, path, "", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", path, rec.Code)
		}
		resp := decodeBody[map[string]string](t, rec)
		if resp["errorStatus"] != "Unauthorized" {
			t.Errorf("%s: errorStatus = %q", path, resp["errorStatus"])
		}
	}

	rec := e.do(http.MethodGet, "/api/v1/user/contacts", "not-a-token", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("garbage token: status = %d, want 403", rec.Code)
	}
}

func TestRegister_DuplicateEmailConflicts(t *testing.T) {
	e := newTestEnv(t)
	e.registerAndLogin("dup@example.com", "Dup")

	rec := e.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "longenough", "displayName": "Again",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.registerAndLogin("who@example.com", "Who")

	rec := e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "who@example.com", "password": "wrongwrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestConnectionLifecycle_EndToEnd(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceTok := e.registerAndLogin("alice@example.com", "Alice")
	bob, bobTok := e.registerAndLogin("bob@example.com", "Bob")

	// Alice sends a request to Bob
	rec := e.do(http.MethodPost, "/api/v1/user/sendFriendReq", aliceTok, map[string]string{"email": bob.Email})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sendFriendReq: status %d body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[struct {
		ID        string `json:"_id"`
		FromEmail string `json:"fromEmail"`
		ToEmail   string `json:"toEmail"`
	}](t, rec)
	if created.ID == "" || created.FromEmail != alice.Email || created.ToEmail != bob.Email {
		t.Fatalf("created = %+v", created)
	}

	// A duplicate in either direction conflicts
	rec = e.do(http.MethodPost, "/api/v1/user/sendFriendReq", bobTok, map[string]string{"email": alice.Email})
	if rec.Code != http.StatusConflict {
		t.Errorf("reverse duplicate: status = %d, want 409", rec.Code)
	}

	// Bob sees the pending request
	rec = e.do(http.MethodGet, "/api/v1/user/getConnectionRequests", bobTok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("getConnectionRequests: status %d", rec.Code)
	}
	pending := decodeBody[[]map[string]any](t, rec)
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	// Alice may not accept her own request
	rec = e.do(http.MethodPost, "/api/v1/user/acceptFriendReq", aliceTok, map[string]string{"_id": created.ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("sender accept: status = %d, want 404", rec.Code)
	}

	// Bob accepts
	rec = e.do(http.MethodPost, "/api/v1/user/acceptFriendReq", bobTok, map[string]string{"_id": created.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("acceptFriendReq: status %d body %s", rec.Code, rec.Body.String())
	}

	// Both contact lists contain the other party
	for _, tc := range []struct {
		token string
		want  string
	}{
		{aliceTok, bob.Email},
		{bobTok, alice.Email},
	} {
		rec = e.do(http.MethodGet, "/api/v1/user/contacts", tc.token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("contacts: status %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tc.want) {
			t.Errorf("contacts body missing %s: %s", tc.want, rec.Body.String())
		}
	}

	// Messages flow now that they are connected
	rec = e.do(http.MethodPost, "/api/v1/user/sendMessage", aliceTok, map[string]string{
		"message": "hi bob", "receiverId": bob.UID, "receiverEmail": bob.Email,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("sendMessage: status %d body %s", rec.Code, rec.Body.String())
	}
	event := decodeBody[map[string]any](t, rec)
	if event["message"] != "hi bob" || event["senderId"] != alice.UID {
		t.Errorf("event = %v", event)
	}

	// findContact reflects the friendship
	rec = e.do(http.MethodPost, "/api/v1/user/findContact", aliceTok, map[string]string{"email": bob.Email})
	if rec.Code != http.StatusOK {
		t.Fatalf("findContact: status %d", rec.Code)
	}
	lookup := decodeBody[map[string]any](t, rec)
	if lookup["isFriend"] != true {
		t.Errorf("lookup = %v", lookup)
	}
}

func TestSendMessage_ToStrangerForbidden(t *testing.T) {
	e := newTestEnv(t)
	_, aliceTok := e.registerAndLogin("alice@example.com", "Alice")
	carol, _ := e.registerAndLogin("carol@example.com", "Carol")

	rec := e.do(http.MethodPost, "/api/v1/user/sendMessage", aliceTok, map[string]string{
		"message": "hi", "receiverId": carol.UID, "receiverEmail": carol.Email,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestDismissFriendReq_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	_, aliceTok := e.registerAndLogin("alice@example.com", "Alice")
	bob, bobTok := e.registerAndLogin("bob@example.com", "Bob")

	rec := e.do(http.MethodPost, "/api/v1/user/sendFriendReq", aliceTok, map[string]string{"email": bob.Email})
	created := decodeBody[struct {
		ID string `json:"_id"`
	}](t, rec)

	rec = e.do(http.MethodPost, "/api/v1/user/dismissFriendReq", bobTok, map[string]string{"_id": created.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss: status %d", rec.Code)
	}
	first := decodeBody[map[string]any](t, rec)
	if first["dismissed"] != true {
		t.Errorf("first dismissal = %v", first)
	}

	rec = e.do(http.MethodPost, "/api/v1/user/dismissFriendReq", bobTok, map[string]string{"_id": created.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat dismiss: status %d", rec.Code)
	}
	second := decodeBody[map[string]any](t, rec)
	if second["dismissed"] != false {
		t.Errorf("second dismissal = %v", second)
	}
}

func TestPusherAuth_OwnChannelOnly(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceTok := e.registerAndLogin("alice@example.com", "Alice")

	form := url.Values{}
	form.Set("socket_id", "1234.5678")
	form.Set("channel_name", fmt.Sprintf("private-%s", alice.UID))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/pusher/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+aliceTok)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("own channel: status %d body %s", rec.Code, rec.Body.String())
	}

	// A foreign channel is rejected
	form.Set("channel_name", "private-someone-else")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/user/pusher/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+aliceTok)
	rec = httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign channel: status = %d, want 403", rec.Code)
	}
}

func TestNew_MissingDepsFails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(config.DefaultConfig(), logger, nil); err == nil {
		t.Error("expected error for nil deps")
	}
	if _, err := New(config.DefaultConfig(), logger, &Deps{}); err == nil {
		t.Error("expected error for empty deps")
	}
}
