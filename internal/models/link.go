package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LinkStatus is the lifecycle state of a transfer link.
type LinkStatus string

const (
	StatusAwaitingUpload LinkStatus = "waiting_for_upload"
	StatusUploaded       LinkStatus = "uploaded"
	StatusDownloaded     LinkStatus = "downloaded"
	StatusExpired        LinkStatus = "expired"
)

// Terminal reports whether no further transitions are allowed from s.
func (s LinkStatus) Terminal() bool {
	return s == StatusDownloaded || s == StatusExpired
}

// Link is a single-use transfer link: uploaded to once, downloaded once,
// then gone. StorageKey is the internal object name and is only set once a
// file has been accepted; DisplayName is whatever the uploader called the
// file and is never used as a storage path.
type Link struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	LinkID      string             `bson:"link_id" json:"id"`
	OwnerID     string             `bson:"owner_id" json:"-"`
	Status      LinkStatus         `bson:"status" json:"status"`
	StorageKey  string             `bson:"storage_key,omitempty" json:"-"`
	DisplayName string             `bson:"display_name,omitempty" json:"filename,omitempty"`
	MimeType    string             `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	ByteSize    int64              `bson:"byte_size,omitempty" json:"file_size,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time          `bson:"expires_at" json:"expires_at"`
}
