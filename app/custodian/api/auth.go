package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionTTL = 24 * time.Hour

type contextKey string

const userIDKey contextKey = "userID"

// IssueSession signs a session token for the given user.
func (s *Server) IssueSession(userID string) (string, time.Time, error) {
	expiration := s.now().Add(sessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": expiration.Unix(),
		"iat": s.now().Unix(),
	})
	ss, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return ss, expiration, nil
}

// sessionUser extracts and validates the bearer token, returning the user id.
func (s *Server) sessionUser(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) { return s.JWTSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}

// RequireAuth middleware.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.sessionUser(r)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// requestUser returns the authenticated user id stored by RequireAuth.
func requestUser(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
