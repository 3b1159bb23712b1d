package central

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kasuganosora/worldsrv/cache"
	"github.com/kasuganosora/worldsrv/game/party"
)

// UserStorage keeps the snapshots of online characters in two cache hashes:
// one by id and one from lower-cased name to id.
type UserStorage struct {
	c      cache.Cache
	byID   string
	byName string
}

// NewUserStorage creates a UserStorage under prefix.
func NewUserStorage(c cache.Cache, prefix string) *UserStorage {
	return &UserStorage{
		c:      c,
		byID:   prefix + ":users",
		byName: prefix + ":user_names",
	}
}

func nameKey(name string) string { return strings.ToLower(name) }

// Put records u as online, replacing any earlier snapshot.
func (s *UserStorage) Put(ctx context.Context, u party.RemoteUser) error {
	b, err := encMode.Marshal(u)
	if err != nil {
		return fmt.Errorf("central: encode user %d: %w", u.CharID, err)
	}
	id := strconv.Itoa(int(u.CharID))
	if err := s.c.HSet(ctx, s.byID, id, string(b)); err != nil {
		return fmt.Errorf("central: store user %d: %w", u.CharID, err)
	}
	if err := s.c.HSet(ctx, s.byName, nameKey(u.Name), id); err != nil {
		return fmt.Errorf("central: index user %d: %w", u.CharID, err)
	}
	return nil
}

// Remove forgets u.
func (s *UserStorage) Remove(ctx context.Context, u party.RemoteUser) error {
	if err := s.c.HDel(ctx, s.byID, strconv.Itoa(int(u.CharID))); err != nil {
		return fmt.Errorf("central: drop user %d: %w", u.CharID, err)
	}
	if err := s.c.HDel(ctx, s.byName, nameKey(u.Name)); err != nil {
		return fmt.Errorf("central: unindex user %d: %w", u.CharID, err)
	}
	return nil
}

// ByID returns the snapshot of charID if they are online.
func (s *UserStorage) ByID(ctx context.Context, charID int32) (party.RemoteUser, bool) {
	raw, err := s.c.HGet(ctx, s.byID, strconv.Itoa(int(charID)))
	if err != nil {
		return party.RemoteUser{}, false
	}
	var u party.RemoteUser
	if err := decMode.Unmarshal([]byte(raw), &u); err != nil {
		return party.RemoteUser{}, false
	}
	return u, true
}

// ByName resolves an online character by name, ignoring case.
func (s *UserStorage) ByName(ctx context.Context, name string) (party.RemoteUser, bool) {
	raw, err := s.c.HGet(ctx, s.byName, nameKey(name))
	if err != nil {
		return party.RemoteUser{}, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return party.RemoteUser{}, false
	}
	return s.ByID(ctx, int32(id))
}

// Online returns the number of characters with a snapshot.
func (s *UserStorage) Online(ctx context.Context) (int, error) {
	all, err := s.c.HGetAll(ctx, s.byID)
	if err != nil {
		return 0, fmt.Errorf("central: list users: %w", err)
	}
	return len(all), nil
}
