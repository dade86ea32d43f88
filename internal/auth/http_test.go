package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()

	s := &Server{
		Log:   zap.NewNop(),
		Store: NewMemStore().WithCost(bcrypt.MinCost),
		JWT:   NewTokenMaker("test-secret"),
		Deny:  NewDenylist(),
	}
	ts := httptest.NewServer(NewHandler(s, HTTPDeps{
		Log:                 zap.NewNop(),
		Service:             "auth",
		Registry:            prometheus.NewRegistry(),
		LoginLimitPerMin:    100,
		RegisterLimitPerMin: 100,
	}))
	t.Cleanup(ts.Close)
	return ts, s
}

func post(t *testing.T, url, token string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(http.MethodPost, url, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req, out)
}

func get(t *testing.T, url, token string, out any) int {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req, out)
}

func do(t *testing.T, req *http.Request, out any) int {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func register(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()

	code := post(t, ts.URL+"/auth/register", "", map[string]string{
		"email": email, "password": "password123", "full_name": "Asha Rao",
	}, nil)
	if code != http.StatusCreated {
		t.Fatalf("register status=%d", code)
	}

	var lr loginResp
	code = post(t, ts.URL+"/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	}, &lr)
	if code != http.StatusOK || lr.AccessToken == "" {
		t.Fatalf("login status=%d token=%q", code, lr.AccessToken)
	}
	return lr.AccessToken
}

func TestAuth_RegisterLoginWhoAmI(t *testing.T) {
	ts, _ := newTestServer(t)
	tok := register(t, ts, " Asha@Example.com ")

	var me map[string]string
	if code := get(t, ts.URL+"/auth/whoami", tok, &me); code != http.StatusOK {
		t.Fatalf("whoami status=%d", code)
	}
	if me["email"] != "asha@example.com" || me["full_name"] != "Asha Rao" || me["role"] != "user" {
		t.Fatalf("unexpected whoami %v", me)
	}
	if len(me["user_id"]) < 3 || me["user_id"][:2] != "u_" {
		t.Fatalf("user_id=%q", me["user_id"])
	}
}

func TestAuth_RegisterValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	register(t, ts, "dup@example.com")

	cases := []struct {
		name string
		body map[string]string
		want int
	}{
		{"duplicate", map[string]string{"email": "DUP@example.com", "password": "password123"}, http.StatusConflict},
		{"short password", map[string]string{"email": "a@example.com", "password": "short"}, http.StatusBadRequest},
		{"no at sign", map[string]string{"email": "example.com", "password": "password123"}, http.StatusBadRequest},
		{"missing email", map[string]string{"password": "password123"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code := post(t, ts.URL+"/auth/register", "", tc.body, nil); code != tc.want {
				t.Fatalf("status=%d want=%d", code, tc.want)
			}
		})
	}
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	ts, _ := newTestServer(t)
	register(t, ts, "b@example.com")

	code := post(t, ts.URL+"/auth/login", "", map[string]string{
		"email": "b@example.com", "password": "wrong-password",
	}, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("status=%d want 401", code)
	}
}

func TestAuth_LogoutRevokesToken(t *testing.T) {
	ts, s := newTestServer(t)
	tok := register(t, ts, "c@example.com")

	if code := post(t, ts.URL+"/auth/logout", tok, nil, nil); code != http.StatusNoContent {
		t.Fatalf("logout status=%d", code)
	}
	if s.Deny.Len() != 1 {
		t.Fatalf("denylist len=%d want 1", s.Deny.Len())
	}
	if code := get(t, ts.URL+"/auth/whoami", tok, nil); code != http.StatusUnauthorized {
		t.Fatalf("whoami after logout status=%d want 401", code)
	}
	if code := get(t, ts.URL+"/auth/whoami", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("whoami without token status=%d want 401", code)
	}
}

func TestAuth_LoginRateLimited(t *testing.T) {
	s := &Server{
		Store: NewMemStore().WithCost(bcrypt.MinCost),
		JWT:   NewTokenMaker("test-secret"),
	}
	ts := httptest.NewServer(NewHandler(s, HTTPDeps{LoginLimitPerMin: 2}))
	defer ts.Close()

	body := map[string]string{"email": "x@example.com", "password": "password123"}
	for i := 0; i < 2; i++ {
		if code := post(t, ts.URL+"/auth/login", "", body, nil); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status=%d want 401", i, code)
		}
	}
	if code := post(t, ts.URL+"/auth/login", "", body, nil); code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", code)
	}
}
