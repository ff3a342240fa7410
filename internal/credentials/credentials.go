package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrDuplicate         = errors.New("credential already exists")
)

// HashCost is the bcrypt cost used for new secrets.
var HashCost = bcrypt.DefaultCost

// Store verifies the secret of a privileged identity.
type Store interface {
	Verify(ctx context.Context, role engine.Role, name, secret string) error
}

type Entry struct {
	Role   engine.Role
	Name   string
	Secret string
}

// ParseEntries reads "role:name:secret" triples separated by commas.
func ParseEntries(spec string) ([]Entry, error) {
	var entries []Entry
	for _, raw := range strings.Split(spec, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("credential %q: want role:name:secret", raw)
		}
		role := engine.Role(strings.ToLower(parts[0]))
		if !role.Privileged() {
			return nil, fmt.Errorf("credential %q: role must be host or creator", raw)
		}
		entries = append(entries, Entry{Role: role, Name: parts[1], Secret: parts[2]})
	}
	return entries, nil
}

func key(role engine.Role, name string) string {
	return string(role) + ":" + strings.ToLower(strings.TrimSpace(name))
}

func hashSecret(secret string) ([]byte, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}
	return h, nil
}

func compare(hash []byte, secret string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredential
		}
		return fmt.Errorf("compare secret: %w", err)
	}
	return nil
}

// StaticStore is an in-memory credential table fixed at startup.
type StaticStore struct {
	hashes map[string][]byte
}

func NewStaticStore(entries []Entry) (*StaticStore, error) {
	s := &StaticStore{hashes: make(map[string][]byte, len(entries))}
	for _, e := range entries {
		h, err := hashSecret(e.Secret)
		if err != nil {
			return nil, err
		}
		s.hashes[key(e.Role, e.Name)] = h
	}
	return s, nil
}

func (s *StaticStore) Verify(_ context.Context, role engine.Role, name, secret string) error {
	h, ok := s.hashes[key(role, name)]
	if !ok {
		return ErrInvalidCredential
	}
	return compare(h, secret)
}

type LoginResult struct {
	Accepted bool        `json:"accepted"`
	Reason   engine.Code `json:"reason,omitempty"`
}

// Login decides whether an identity may proceed to joinRoom. Players need no
// secret; host and creator must match the store. The error return is reserved
// for store failures.
func Login(ctx context.Context, s Store, role engine.Role, name, secret string) (LoginResult, error) {
	if !role.Valid() || strings.TrimSpace(name) == "" {
		return LoginResult{Reason: engine.CodeMissingFields}, nil
	}
	if role == engine.RolePlayer {
		return LoginResult{Accepted: true}, nil
	}

	err := s.Verify(ctx, role, name, secret)
	switch {
	case err == nil:
		return LoginResult{Accepted: true}, nil
	case errors.Is(err, ErrInvalidCredential):
		return LoginResult{Reason: engine.CodeNotAuthorizedForHost}, nil
	default:
		return LoginResult{}, err
	}
}
