package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const cookieName = "maildrop_session"

// TokenManager issues and verifies the HMAC-signed session tokens the HTTP
// admin API stores in a cookie. Tokens carry a username and an issue time and
// expire after maxAge.
type TokenManager struct {
	secret []byte
	maxAge time.Duration
}

func NewTokenManager(secret string, maxAge time.Duration) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, fmt.Errorf("generate auth secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(generated)
	}
	return &TokenManager{secret: []byte(secret), maxAge: maxAge}, nil
}

func (m *TokenManager) CookieName() string {
	return cookieName
}

func (m *TokenManager) MaxAge() time.Duration {
	return m.maxAge
}

func (m *TokenManager) Issue(username string, now time.Time) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, "|") {
		return "", errors.New("invalid username")
	}
	payload := username + "|" + strconv.FormatInt(now.Unix(), 10)
	token := payload + "|" + m.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (m *TokenManager) Parse(token string, now time.Time) (string, error) {
	if token == "" {
		return "", errors.New("missing session token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", errors.New("invalid session token")
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", errors.New("invalid session token")
	}
	payload := parts[0] + "|" + parts[1]
	if !m.verify(payload, parts[2]) {
		return "", errors.New("invalid session token")
	}
	timestamp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", errors.New("invalid session token")
	}
	if now.Sub(time.Unix(timestamp, 0)) > m.maxAge {
		return "", errors.New("session expired")
	}
	return parts[0], nil
}

func (m *TokenManager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *TokenManager) verify(payload, signature string) bool {
	expected := m.sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
