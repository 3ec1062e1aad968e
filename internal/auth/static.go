package auth

import (
	"bufio"
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
)

// Static authenticates against a fixed credential table. Lookups are
// case-insensitive; the canonical identity is the username exactly as it was
// registered.
type Static struct {
	users map[string]staticUser
}

type staticUser struct {
	name     string
	password string
}

// NewStatic builds a Static from a username→password map.
func NewStatic(credentials map[string]string) *Static {
	s := &Static{users: make(map[string]staticUser, len(credentials))}
	for name, password := range credentials {
		s.users[strings.ToLower(name)] = staticUser{name: name, password: password}
	}
	return s
}

// LoadStatic reads a credential file with one "username:password" pair per
// line. Blank lines and lines starting with # are skipped.
func LoadStatic(path string) (*Static, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open users file: %w", err)
	}
	defer file.Close()

	credentials := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, password, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("users file %s: malformed line %q", path, line)
		}
		credentials[strings.TrimSpace(name)] = password
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return NewStatic(credentials), nil
}

func (s *Static) Authenticate(_ context.Context, username, password string) (string, error) {
	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return "", ErrUserNotFound
	}
	if subtle.ConstantTimeCompare([]byte(user.password), []byte(password)) != 1 {
		return "", ErrInvalidCredentials
	}
	return user.name, nil
}
