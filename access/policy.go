// Package access decides who may read or change a file record.
// Every function is pure; callers pass the current time explicitly.
package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/basit/mediashare-backend/models"
)

// Requester is an already authenticated identity. A nil *Requester is anonymous.
type Requester struct {
	ID uuid.UUID
}

func NewRequester(id uuid.UUID) *Requester {
	return &Requester{ID: id}
}

func IsExpired(f *models.File, now time.Time) bool {
	return f.IsExpired(now)
}

// CanRead is true for unexpired files that are public or owned by the requester.
func CanRead(f *models.File, r *Requester, now time.Time) bool {
	if IsExpired(f, now) {
		return false
	}
	if f.IsPublic {
		return true
	}
	return isOwner(f, r)
}

// CanMutate is true only for the exact owner. Anonymous uploads have no owner
// and therefore cannot be changed through this path.
func CanMutate(f *models.File, r *Requester) bool {
	return isOwner(f, r)
}

func isOwner(f *models.File, r *Requester) bool {
	return r != nil && f.IsOwnedBy(r.ID)
}
