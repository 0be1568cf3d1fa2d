package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hapnesbitt/FroogleOne/internal/store"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "froogle_session"

// SessionClaims is the signed session payload.
type SessionClaims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies signed session cookies. Sessions are
// stateless; logout is cookie deletion.
type SessionManager struct {
	secret []byte
	maxAge time.Duration
	secure bool
}

// NewSessionManager creates a new session manager.
func NewSessionManager(secret string, maxAge time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		maxAge: maxAge,
		secure: secure,
	}
}

// CreateSession signs a session token for the user and sets the cookie.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, u store.User) error {
	now := time.Now()
	claims := SessionClaims{
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.maxAge)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.maxAge.Seconds()),
	})
	return nil
}

// GetSession retrieves and verifies the session from the request.
// Returns nil without error when no valid session exists.
func (sm *SessionManager) GetSession(r *http.Request) (*SessionClaims, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return sm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, nil
	}
	return claims, nil
}

// DeleteSession clears the session cookie.
func (sm *SessionManager) DeleteSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
