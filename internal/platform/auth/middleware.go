package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const sessionKey contextKey = "session"

// CookieName is the name of the session cookie.
const CookieName = "clinic_session"

const issuer = "clinic-server"

// Session identifies the logged-in user of one request.
type Session struct {
	Role  Role   `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session of the request, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SessionManager stores sessions in an HS256-signed cookie.
type SessionManager struct {
	key    []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionManager(key []byte, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{key: key, ttl: ttl, secure: secure, now: time.Now}
}

// Token signs s into a session token.
func (m *SessionManager) Token(s Session) (string, error) {
	now := m.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role:  string(s.Role),
		Email: s.Email,
		Name:  s.Name,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return tok, nil
}

// Parse verifies a session token and returns its session.
func (m *SessionManager) Parse(token string) (Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return Session{}, err
	}
	if claims.Email == "" {
		return Session{}, errors.New("session has no email")
	}
	return Session{Role: role, Email: claims.Email, Name: claims.Name}, nil
}

// Issue sets the session cookie on the response.
func (m *SessionManager) Issue(c echo.Context, s Session) error {
	tok, err := m.Token(s)
	if err != nil {
		return err
	}
	c.SetCookie(m.cookie(tok, int(m.ttl.Seconds())))
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(c echo.Context) {
	c.SetCookie(m.cookie("", -1))
}

func (m *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Middleware loads the session cookie into the request context. Requests
// without a valid cookie continue anonymously; an invalid cookie is cleared.
func (m *SessionManager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(CookieName)
			if err != nil || ck.Value == "" {
				return next(c)
			}

			s, err := m.Parse(ck.Value)
			if err != nil {
				m.Clear(c)
				return next(c)
			}

			c.SetRequest(c.Request().WithContext(WithSession(c.Request().Context(), s)))
			return next(c)
		}
	}
}
