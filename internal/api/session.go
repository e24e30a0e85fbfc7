package api

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/org/loginshield/internal/crypto"
	"github.com/org/loginshield/pkg/models"
)

const (
	sessionCookieName = "loginshield_session"
	cookieKeyContext  = "loginshield-session-cookie-v1"
)

var errBadCookie = errors.New("malformed session cookie")

// sessionCodec signs session cookies of the form
// base64(username).sessionID.signature. The ID ties a cookie to one session
// instance: a later login or a logout replaces it and the old cookie stops
// matching.
type sessionCodec struct {
	key    []byte
	secure bool
}

func newSessionCodec(secret string, secure bool) (*sessionCodec, error) {
	key, err := crypto.DeriveKey([]byte(secret), cookieKeyContext)
	if err != nil {
		return nil, err
	}
	return &sessionCodec{key: key, secure: secure}, nil
}

func (c *sessionCodec) encode(username, sessionID string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(username)) + "." + sessionID
	return payload + "." + crypto.Sign(c.key, payload)
}

func (c *sessionCodec) decode(value string) (username, sessionID string, err error) {
	i := strings.LastIndexByte(value, '.')
	if i < 0 {
		return "", "", errBadCookie
	}
	payload, sig := value[:i], value[i+1:]
	if err := crypto.Verify(c.key, payload, sig); err != nil {
		return "", "", err
	}
	userPart, id, ok := strings.Cut(payload, ".")
	if !ok || id == "" {
		return "", "", errBadCookie
	}
	user, err := base64.RawURLEncoding.DecodeString(userPart)
	if err != nil {
		return "", "", errBadCookie
	}
	return string(user), id, nil
}

func (c *sessionCodec) set(w http.ResponseWriter, sess models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    c.encode(sess.Username, sess.ID),
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *sessionCodec) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionUser returns the username from a correctly signed cookie that
// belongs to the user's current session, or "". It does not check expiry.
func (s *Server) sessionUser(r *http.Request) string {
	ck, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	user, id, err := s.cookies.decode(ck.Value)
	if err != nil {
		return ""
	}
	current, ok := s.enforcer.Session(user)
	if !ok || subtle.ConstantTimeCompare([]byte(current.ID), []byte(id)) != 1 {
		return ""
	}
	return user
}
