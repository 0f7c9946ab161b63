package account

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/recordstore"
	"github.com/clinic/clinic/internal/platform/web"
)

func newTestServer(store recordstore.Store) (*echo.Echo, *auth.SessionManager) {
	sessions := auth.NewSessionManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour, false)
	e := echo.New()
	e.Use(sessions.Middleware())
	NewHandler(newTestService(store), sessions, zerolog.Nop()).RegisterRoutes(e)
	return e, sessions
}

func postForm(e *echo.Echo, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeNotice(t *testing.T, rec *httptest.ResponseRecorder) web.Notice {
	t.Helper()
	var n web.Notice
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode notice: %v (body %s)", err, rec.Body.String())
	}
	return n
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	e, sessions := newTestServer(recordstore.NewMemoryStore())

	rec := postForm(e, "/register/patient", url.Values{
		"name": {"Alice"}, "email": {"alice@x.com"}, "password": {"pw1"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("register: expected 303, got %d", rec.Code)
	}
	if n := decodeNotice(t, rec); n.Redirect != "/login/patient" || n.Message != "Registration successful. Please log in." {
		t.Errorf("unexpected notice %+v", n)
	}

	rec = postForm(e, "/login/patient", url.Values{"email": {"alice@x.com"}, "password": {"pw1"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login: expected 303, got %d", rec.Code)
	}
	n := decodeNotice(t, rec)
	if n.Redirect != "/dashboard/patient" || n.Message != "Logged in as patient" {
		t.Errorf("unexpected notice %+v", n)
	}

	var token string
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.CookieName {
			token = ck.Value
		}
	}
	sess, err := sessions.Parse(token)
	if err != nil {
		t.Fatalf("session cookie: %v", err)
	}
	if sess.Role != auth.RolePatient || sess.Email != "alice@x.com" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestHandler_RegisterDuplicate(t *testing.T) {
	e, _ := newTestServer(recordstore.NewMemoryStore())
	form := url.Values{"name": {"A"}, "email": {"a@x.com"}, "password": {"pw"}}
	postForm(e, "/register/patient", form)

	rec := postForm(e, "/register/patient", form)
	n := decodeNotice(t, rec)
	if n.Message != "Account already exists" || n.Redirect != "/register/patient" {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestHandler_LoginFailures(t *testing.T) {
	e, _ := newTestServer(recordstore.NewMemoryStore())

	tests := []struct {
		name         string
		path         string
		wantRedirect string
		wantMessage  string
	}{
		{"unknown role", "/login/janitor", "/", "Unknown role"},
		{"bad credentials", "/login/doctor", "/login/doctor", "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(e, tt.path, url.Values{"email": {"x@x.com"}, "password": {"pw"}})
			if rec.Code != http.StatusSeeOther {
				t.Fatalf("expected 303, got %d", rec.Code)
			}
			n := decodeNotice(t, rec)
			if n.Redirect != tt.wantRedirect || n.Message != tt.wantMessage {
				t.Errorf("unexpected notice %+v", n)
			}
			for _, ck := range rec.Result().Cookies() {
				if ck.Name == auth.CookieName && ck.Value != "" {
					t.Error("failed login must not issue a session")
				}
			}
		})
	}
}

func TestHandler_LoginBackendDown(t *testing.T) {
	e, _ := newTestServer(downStore{})
	rec := postForm(e, "/login/admin", url.Values{"email": {"a@x.com"}, "password": {"pw"}})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if n := decodeNotice(t, rec); n.Message != "service unavailable" {
		t.Errorf("unexpected notice %+v", n)
	}
}

func TestHandler_LoginPage(t *testing.T) {
	e, _ := newTestServer(recordstore.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/login/Nurse", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"action":"/login/nurse"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login/janitor", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get(echo.HeaderLocation) != "/" {
		t.Errorf("unknown role page: got %d to %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestHandler_Logout(t *testing.T) {
	e, _ := newTestServer(recordstore.NewMemoryStore())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	if n := decodeNotice(t, rec); n.Message != "Logged out" || n.Redirect != "/" {
		t.Errorf("unexpected notice %+v", n)
	}
	cleared := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.CookieName && ck.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be cleared")
	}
}

func TestHandler_Index(t *testing.T) {
	e, _ := newTestServer(recordstore.NewMemoryStore())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body struct {
		Roles []entryPoint `json:"roles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Roles) != 4 || body.Roles[0].Register != "/register/patient" {
		t.Errorf("unexpected index %+v", body.Roles)
	}
}
