package store

import (
	"context"
	"errors"
	"time"

	"github.com/vmorozov/droplink/internal/models"
)

var (
	// ErrNotFound means no record exists for the given key.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a state transition lost a compare-and-swap race:
	// the link's stored status no longer matched the expected one.
	ErrConflict = errors.New("link state changed concurrently")
	// ErrDuplicate means a unique constraint was violated on insert.
	ErrDuplicate = errors.New("record already exists")
)

// StateChange describes a compare-and-swap transition for a link. The
// metadata fields are only consulted on the transition into Uploaded.
type StateChange struct {
	To          models.LinkStatus
	StorageKey  string
	DisplayName string
	MimeType    string
	ByteSize    int64
}

// LinkStore persists transfer links. Transition is the single mutation
// primitive: it atomically replaces the link's status (and upload metadata)
// only if the stored status still equals from, returning ErrConflict
// otherwise. Every lifecycle decision in the service layer is built on that
// guarantee, so operations on the same link serialize here while links with
// different IDs never block each other.
type LinkStore interface {
	Insert(ctx context.Context, link *models.Link) error
	Get(ctx context.Context, linkID string) (models.Link, error)
	Transition(ctx context.Context, linkID string, from models.LinkStatus, change StateChange) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error)
	ListExpiredCandidates(ctx context.Context, before time.Time) ([]models.Link, error)
}

// UserStore persists link owners.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
}
