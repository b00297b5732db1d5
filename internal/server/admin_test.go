package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func (e *testEnv) adminRequest(t *testing.T, method, path, cookie string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) adminLogin(t *testing.T) string {
	t.Helper()
	w := e.adminRequest(t, http.MethodPost, "/api/admin/login", "",
		AdminLoginRequest{Email: testAdminEmail, Password: testAdminPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body %s", w.Code, w.Body)
	}
	cookie := fmtCookie(w.Result().Cookies())
	if cookie == "" {
		t.Fatal("login set no session cookie")
	}
	return cookie
}

func TestAdminLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.adminRequest(t, http.MethodPost, "/api/admin/login", "",
		AdminLoginRequest{Email: testAdminEmail, Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status = %d, want 401", w.Code)
	}

	w = env.adminRequest(t, http.MethodPost, "/api/admin/login", "",
		AdminLoginRequest{Email: "nobody@example.com", Password: testAdminPassword})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown email: status = %d, want 401", w.Code)
	}

	// Email matching is case-insensitive.
	w = env.adminRequest(t, http.MethodPost, "/api/admin/login", "",
		AdminLoginRequest{Email: "Admin@Example.COM", Password: testAdminPassword})
	if w.Code != http.StatusOK {
		t.Errorf("mixed-case email: status = %d, want 200", w.Code)
	}

	cookie := env.adminLogin(t)
	w = env.adminRequest(t, http.MethodGet, "/api/admin/me", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status = %d", w.Code)
	}
	me := decode[AdminMeResponse](t, w)
	if me.Email != testAdminEmail {
		t.Errorf("email = %q, want %q", me.Email, testAdminEmail)
	}
}

func TestAdminLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminLogin(t)

	if w := env.adminRequest(t, http.MethodPost, "/api/admin/logout", cookie, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: status = %d", w.Code)
	}

	// The server-side session is gone, not just the cookie.
	if w := env.adminRequest(t, http.MethodGet, "/api/admin/me", cookie, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout: status = %d, want 401", w.Code)
	}
}

func TestAdminLocationsRequireSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.adminRequest(t, http.MethodGet, "/api/admin/locations/", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want 401", w.Code)
	}

	w = env.adminRequest(t, http.MethodGet, "/api/admin/locations/", adminCookieName+"=bogus", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bogus cookie: status = %d, want 401", w.Code)
	}
}

func TestAdminLocationCRUD(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminLogin(t)

	w := env.adminRequest(t, http.MethodPost, "/api/admin/locations/", cookie,
		AdminLocationRequest{Lat: 48.8566, Lng: 2.3522, PanoURL: "https://panos.example/paris"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", w.Code, w.Body)
	}
	created := decode[AdminLocationItem](t, w)
	if created.ID == "" {
		t.Fatal("empty location id")
	}
	if created.Complexity != "normal" {
		t.Errorf("default complexity = %q, want normal", created.Complexity)
	}

	w = env.adminRequest(t, http.MethodGet, "/api/admin/locations/"+created.ID, cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	got := decode[AdminLocationItem](t, w)
	if got.Lat != 48.8566 || got.Lng != 2.3522 {
		t.Errorf("coordinate = %v,%v; want 48.8566,2.3522", got.Lat, got.Lng)
	}

	w = env.adminRequest(t, http.MethodGet, "/api/admin/locations/", cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	if items := decode[[]AdminLocationItem](t, w); len(items) != 1 {
		t.Errorf("list len = %d, want 1", len(items))
	}

	w = env.adminRequest(t, http.MethodDelete, "/api/admin/locations/"+created.ID, cookie, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", w.Code)
	}
	w = env.adminRequest(t, http.MethodGet, "/api/admin/locations/"+created.ID, cookie, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", w.Code)
	}
}

func TestAdminCreateLocationValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminLogin(t)

	cases := []struct {
		name string
		req  AdminLocationRequest
	}{
		{"lat out of range", AdminLocationRequest{Lat: 95, Lng: 0, PanoURL: "https://p.example/x"}},
		{"missing pano url", AdminLocationRequest{Lat: 10, Lng: 10}},
		{"bad complexity", AdminLocationRequest{Lat: 10, Lng: 10, PanoURL: "https://p.example/x", Complexity: "extreme"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.adminRequest(t, http.MethodPost, "/api/admin/locations/", cookie, tc.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}
