// Package memory is an in-process feedbackAuth.UserStore.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/permission"
)

// Store keeps accounts in memory. Records are copied on the way in and out.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*feedbackAuth.UserRecord
	byEmail    map[string]string
	byUsername map[string]string
}

var _ feedbackAuth.UserStore = (*Store)(nil)

func New() *Store {
	return &Store{
		byID:       make(map[string]*feedbackAuth.UserRecord),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

func (s *Store) Create(_ context.Context, u *feedbackAuth.UserRecord) error {
	email := strings.ToLower(u.Email)
	username := strings.ToLower(u.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[u.ID]; ok {
		return feedbackAuth.ErrAlreadyRegistered
	}
	if _, ok := s.byEmail[email]; ok {
		return feedbackAuth.ErrAlreadyRegistered
	}
	if _, ok := s.byUsername[username]; ok {
		return feedbackAuth.ErrAlreadyRegistered
	}

	rec := u.Clone()
	rec.Email = email
	s.byID[rec.ID] = rec
	s.byEmail[email] = rec.ID
	s.byUsername[username] = rec.ID
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*feedbackAuth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, feedbackAuth.ErrUserNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*feedbackAuth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, feedbackAuth.ErrUserNotFound
	}
	return s.byID[id].Clone(), nil
}

// Update replaces the stored record with u. Email and username changes are
// re-indexed and must stay unique.
func (s *Store) Update(_ context.Context, u *feedbackAuth.UserRecord) error {
	email := strings.ToLower(u.Email)
	username := strings.ToLower(u.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byID[u.ID]
	if !ok {
		return feedbackAuth.ErrUserNotFound
	}
	if id, taken := s.byEmail[email]; taken && id != u.ID {
		return feedbackAuth.ErrAlreadyRegistered
	}
	if id, taken := s.byUsername[username]; taken && id != u.ID {
		return feedbackAuth.ErrAlreadyRegistered
	}

	delete(s.byEmail, strings.ToLower(old.Email))
	delete(s.byUsername, strings.ToLower(old.Username))

	rec := u.Clone()
	rec.Email = email
	s.byID[rec.ID] = rec
	s.byEmail[email] = rec.ID
	s.byUsername[username] = rec.ID
	return nil
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return feedbackAuth.ErrUserNotFound
	}
	at = at.UTC()
	rec.LastLogin = &at
	return nil
}

func (s *Store) List(_ context.Context, filter feedbackAuth.UserFilter) ([]*feedbackAuth.UserRecord, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	s.mu.RLock()
	out := make([]*feedbackAuth.UserRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		if filter.ActiveOnly && !rec.IsActive {
			continue
		}
		if len(filter.Roles) > 0 && !hasRole(filter.Roles, rec.Role) {
			continue
		}
		if search != "" && !matches(rec, search) {
			continue
		}
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sortUsers(out, filter.Ordering)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*feedbackAuth.UserRecord{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) Counts(_ context.Context) (feedbackAuth.UserCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c feedbackAuth.UserCounts
	for _, rec := range s.byID {
		c.Total++
		if rec.IsEmailVerified {
			c.Verified++
		} else {
			c.Unverified++
		}
		if !rec.IsActive {
			c.Inactive++
			continue
		}
		c.Active++
		switch rec.Role {
		case permission.RoleAdmin:
			c.Admins++
		case permission.RoleModerator:
			c.Moderators++
		case permission.RoleContributor:
			c.Contributors++
		}
	}
	return c, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func hasRole(roles []permission.Role, r permission.Role) bool {
	for _, want := range roles {
		if want == r {
			return true
		}
	}
	return false
}

func matches(u *feedbackAuth.UserRecord, needle string) bool {
	for _, field := range []string{u.Email, u.Username, u.FirstName, u.LastName, u.Company} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortUsers(users []*feedbackAuth.UserRecord, ordering string) {
	if ordering == "" {
		ordering = feedbackAuth.DefaultOrdering
	}
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")

	less := func(a, b *feedbackAuth.UserRecord) bool {
		switch field {
		case "email":
			return a.Email < b.Email
		case "first_name":
			return a.FirstName < b.FirstName
		case "last_name":
			return a.LastName < b.LastName
		case "last_login":
			// Never-logged-in accounts sort first ascending.
			if a.LastLogin == nil || b.LastLogin == nil {
				return a.LastLogin == nil && b.LastLogin != nil
			}
			return a.LastLogin.Before(*b.LastLogin)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(users, func(i, j int) bool {
		if desc {
			return less(users[j], users[i])
		}
		return less(users[i], users[j])
	})
}
