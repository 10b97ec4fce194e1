package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vmorozov/droplink/internal/models"
	"github.com/vmorozov/droplink/internal/storage"
	"github.com/vmorozov/droplink/internal/store"
)

// LinkService owns the link lifecycle:
//
//	waiting_for_upload --(AcceptUpload)--> uploaded
//	waiting_for_upload --(Expire)--------> expired
//	uploaded           --(FulfillDownload)--> downloaded
//	uploaded           --(Expire)--------> expired
//
// downloaded and expired are terminal. Every transition goes through the
// store's compare-and-swap, so concurrent operations on the same link race
// exactly once: one wins the swap, the rest see the new state.
type LinkService struct {
	links store.LinkStore
	blobs storage.BlobStore
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time
}

func NewLinkService(links store.LinkStore, blobs storage.BlobStore, ttl time.Duration, log *slog.Logger) *LinkService {
	return &LinkService{
		links: links,
		blobs: blobs,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// newLinkID returns a 128-bit random, URL-safe link identifier.
func newLinkID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating link id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// storageKey derives the internal object name for an accepted file. The
// random salt keeps the key unguessable from the link ID alone and makes
// keys from concurrent upload attempts on the same link distinct.
func storageKey(linkID, displayName string) string {
	ext := filepath.Ext(filepath.Base(displayName))
	return linkID + "_" + uuid.NewString() + ext
}

// Create allocates a fresh link for ownerID, valid for the configured TTL.
func (s *LinkService) Create(ctx context.Context, ownerID string) (models.Link, error) {
	linkID, err := newLinkID()
	if err != nil {
		return models.Link{}, err
	}

	now := s.now()
	link := models.Link{
		LinkID:    linkID,
		OwnerID:   ownerID,
		Status:    models.StatusAwaitingUpload,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.links.Insert(ctx, &link); err != nil {
		return models.Link{}, fmt.Errorf("persisting link: %w", err)
	}

	s.log.Info("link created", "link_id", linkID, "owner_id", ownerID, "expires_at", link.ExpiresAt)
	return link, nil
}

// Status returns the link without mutating it. A link past its TTL still
// reads with its stored status until the sweeper or a mutating call touches
// it.
func (s *LinkService) Status(ctx context.Context, linkID string) (models.Link, error) {
	link, err := s.links.Get(ctx, linkID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Link{}, ErrLinkNotFound
	}
	if err != nil {
		return models.Link{}, err
	}
	return link, nil
}

// ListByOwner returns the owner's links, newest first.
func (s *LinkService) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	return s.links.ListByOwner(ctx, ownerID)
}

// AcceptUpload stores the file and moves the link to uploaded. Exactly one
// upload ever succeeds per link: the blob is written first under a key
// unique to this attempt, then the state swap decides the winner; a losing
// attempt deletes its own blob again. A link past its TTL is flipped to
// expired on the spot and stores nothing.
func (s *LinkService) AcceptUpload(ctx context.Context, linkID string, r io.Reader, displayName, mimeType string, byteSize int64) (models.Link, error) {
	link, err := s.links.Get(ctx, linkID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Link{}, ErrLinkNotFound
	}
	if err != nil {
		return models.Link{}, err
	}

	switch link.Status {
	case models.StatusUploaded:
		return models.Link{}, ErrAlreadyFulfilled
	case models.StatusExpired:
		return models.Link{}, ErrLinkExpired
	case models.StatusDownloaded:
		return models.Link{}, ErrInvalidState
	}

	if !s.now().Before(link.ExpiresAt) {
		err := s.links.Transition(ctx, linkID, models.StatusAwaitingUpload,
			store.StateChange{To: models.StatusExpired})
		if err != nil && !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrNotFound) {
			return models.Link{}, fmt.Errorf("expiring stale link %s: %w", linkID, err)
		}
		s.log.Info("upload refused, link past TTL", "link_id", linkID)
		return models.Link{}, ErrLinkExpired
	}

	key := storageKey(linkID, displayName)
	if err := s.blobs.Write(ctx, key, r, byteSize, mimeType); err != nil {
		return models.Link{}, fmt.Errorf("storing file for link %s: %w", linkID, err)
	}

	err = s.links.Transition(ctx, linkID, models.StatusAwaitingUpload, store.StateChange{
		To:          models.StatusUploaded,
		StorageKey:  key,
		DisplayName: displayName,
		MimeType:    mimeType,
		ByteSize:    byteSize,
	})
	if err != nil {
		// The swap lost or the record write failed; either way this
		// attempt's blob must not stay behind.
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Error("orphaned blob left behind", "link_id", linkID, "storage_key", key, "error", delErr)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			return models.Link{}, ErrLinkNotFound
		case errors.Is(err, store.ErrConflict):
			return models.Link{}, s.stateError(ctx, linkID)
		default:
			return models.Link{}, fmt.Errorf("recording upload for link %s: %w", linkID, err)
		}
	}

	link.Status = models.StatusUploaded
	link.StorageKey = key
	link.DisplayName = displayName
	link.MimeType = mimeType
	link.ByteSize = byteSize

	s.log.Info("upload accepted", "link_id", linkID, "filename", displayName, "bytes", byteSize)
	return link, nil
}

// FulfillDownload hands out the file exactly once. The uploaded->downloaded
// swap is the serialization point: once one caller wins it, no other call
// can observe the link as uploaded. The blob is deleted when the returned
// reader is closed, after the bytes have been streamed out.
func (s *LinkService) FulfillDownload(ctx context.Context, linkID string) (io.ReadCloser, models.Link, error) {
	link, err := s.links.Get(ctx, linkID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.Link{}, ErrLinkNotFound
	}
	if err != nil {
		return nil, models.Link{}, err
	}

	switch link.Status {
	case models.StatusAwaitingUpload:
		return nil, models.Link{}, ErrNotReady
	case models.StatusDownloaded:
		return nil, models.Link{}, ErrAlreadyFulfilled
	case models.StatusExpired:
		return nil, models.Link{}, ErrLinkExpired
	}

	rc, err := s.blobs.OpenRead(ctx, link.StorageKey)
	if errors.Is(err, storage.ErrBlobNotFound) {
		// Uploaded on record but no blob behind it. One failure surface:
		// treat the inconsistency as expiry.
		s.log.Warn("blob missing for uploaded link", "link_id", linkID, "storage_key", link.StorageKey)
		terr := s.links.Transition(ctx, linkID, models.StatusUploaded,
			store.StateChange{To: models.StatusExpired})
		switch {
		case terr == nil:
			return nil, models.Link{}, ErrLinkExpired
		case errors.Is(terr, store.ErrConflict):
			// Someone else moved the link first; report its outcome.
			return nil, models.Link{}, s.stateError(ctx, linkID)
		case errors.Is(terr, store.ErrNotFound):
			return nil, models.Link{}, ErrLinkNotFound
		default:
			s.log.Error("failed to expire link with missing blob", "link_id", linkID, "error", terr)
			return nil, models.Link{}, ErrLinkExpired
		}
	}
	if err != nil {
		return nil, models.Link{}, fmt.Errorf("opening file for link %s: %w", linkID, err)
	}

	err = s.links.Transition(ctx, linkID, models.StatusUploaded,
		store.StateChange{To: models.StatusDownloaded})
	if err != nil {
		rc.Close()
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, models.Link{}, ErrLinkNotFound
		case errors.Is(err, store.ErrConflict):
			return nil, models.Link{}, s.stateError(ctx, linkID)
		default:
			return nil, models.Link{}, fmt.Errorf("recording download for link %s: %w", linkID, err)
		}
	}

	link.Status = models.StatusDownloaded
	s.log.Info("download fulfilled", "link_id", linkID, "filename", link.DisplayName)

	return &consumedBlob{
		ReadCloser: rc,
		service:    s,
		linkID:     linkID,
		key:        link.StorageKey,
	}, link, nil
}

// Expire drives a link past its TTL into the expired state, deleting the
// backing blob first. Idempotent; a no-op for terminal links and for links
// still inside their TTL. The state swap only happens after the blob is
// gone, so an interrupted run is safe to repeat.
func (s *LinkService) Expire(ctx context.Context, linkID string) error {
	for attempt := 0; attempt < 3; attempt++ {
		link, err := s.links.Get(ctx, linkID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if link.Status.Terminal() {
			// Cleanup only: a downloaded link whose deferred blob delete
			// failed may still hold storage. Delete is idempotent.
			if link.StorageKey != "" {
				if err := s.blobs.Delete(ctx, link.StorageKey); err != nil {
					return fmt.Errorf("deleting leftover blob for link %s: %w", linkID, err)
				}
			}
			return nil
		}
		if s.now().Before(link.ExpiresAt) {
			return nil
		}

		if link.StorageKey != "" {
			if err := s.blobs.Delete(ctx, link.StorageKey); err != nil {
				return fmt.Errorf("deleting blob for link %s: %w", linkID, err)
			}
		}

		err = s.links.Transition(ctx, linkID, link.Status,
			store.StateChange{To: models.StatusExpired})
		if err == nil {
			s.log.Info("link expired", "link_id", linkID, "previous_status", link.Status)
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("expiring link %s: %w", linkID, err)
		}
		// Lost the swap to an upload or download; re-read and decide again.
	}
	return fmt.Errorf("link %s: state kept changing during expiry", linkID)
}

// stateError re-reads a link after a lost compare-and-swap and maps its
// current state to the lifecycle error the caller should see.
func (s *LinkService) stateError(ctx context.Context, linkID string) error {
	link, err := s.links.Get(ctx, linkID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrLinkNotFound
	}
	if err != nil {
		return err
	}
	switch link.Status {
	case models.StatusUploaded, models.StatusDownloaded:
		return ErrAlreadyFulfilled
	case models.StatusExpired:
		return ErrLinkExpired
	default:
		return ErrInvalidState
	}
}

// consumedBlob deletes the blob once the download stream is closed. The
// state is already downloaded by then; deletion failures are logged and
// picked up later by Expire's leftover cleanup.
type consumedBlob struct {
	io.ReadCloser
	service *LinkService
	linkID  string
	key     string
}

func (c *consumedBlob) Close() error {
	err := c.ReadCloser.Close()
	if delErr := c.service.blobs.Delete(context.Background(), c.key); delErr != nil {
		c.service.log.Error("failed to delete blob after download",
			"link_id", c.linkID, "storage_key", c.key, "error", delErr)
	}
	return err
}
