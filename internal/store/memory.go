package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vmorozov/droplink/internal/models"
)

// MemoryLinks is an in-memory LinkStore with the same compare-and-swap
// semantics as the Mongo implementation. Used in tests.
type MemoryLinks struct {
	mu    sync.Mutex
	links map[string]models.Link
}

func NewMemoryLinks() *MemoryLinks {
	return &MemoryLinks{links: make(map[string]models.Link)}
}

func (m *MemoryLinks) Insert(_ context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[link.LinkID]; ok {
		return ErrDuplicate
	}
	m.links[link.LinkID] = *link
	return nil
}

func (m *MemoryLinks) Get(_ context.Context, linkID string) (models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[linkID]
	if !ok {
		return models.Link{}, ErrNotFound
	}
	return link, nil
}

func (m *MemoryLinks) Transition(_ context.Context, linkID string, from models.LinkStatus, change StateChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[linkID]
	if !ok {
		return ErrNotFound
	}
	if link.Status != from {
		return ErrConflict
	}
	link.Status = change.To
	if change.To == models.StatusUploaded {
		link.StorageKey = change.StorageKey
		link.DisplayName = change.DisplayName
		link.MimeType = change.MimeType
		link.ByteSize = change.ByteSize
	}
	// Key by the stored record's own LinkID: map assignment rewrites the
	// key, and the caller's linkID may alias a reused request buffer.
	m.links[link.LinkID] = link
	return nil
}

func (m *MemoryLinks) ListByOwner(_ context.Context, ownerID string) ([]models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var links []models.Link
	for _, link := range m.links {
		if link.OwnerID == ownerID {
			links = append(links, link)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, nil
}

func (m *MemoryLinks) ListExpiredCandidates(_ context.Context, before time.Time) ([]models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var links []models.Link
	for _, link := range m.links {
		if link.Status != models.StatusExpired && !link.ExpiresAt.After(before) {
			links = append(links, link)
		}
	}
	return links, nil
}

// MemoryUsers is an in-memory UserStore. Used in tests.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]models.User)}
}

func (m *MemoryUsers) Insert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return ErrDuplicate
	}
	m.users[user.Email] = *user
	return nil
}

func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}
