package draft

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/contaflow/proposal-app/internal/models"
)

// DefaultTTL is how long a draft stays recoverable. Older drafts are considered
// stale and purged at the next opportunity, not actively invalidated mid-session.
const DefaultTTL = 24 * time.Hour

// Draft is one per-step snapshot of in-progress wizard data.
type Draft struct {
	SessionID string
	Step      int
	Payload   []byte
	Timestamp time.Time
}

func (d Draft) StaleAt(maxAge time.Duration, now time.Time) bool {
	return now.Sub(d.Timestamp) > maxAge
}

// Key builds the fixed, enumerable storage key for a session's step draft.
func Key(sessionID string, step int) string {
	return fmt.Sprintf("draft:%s:%d", sessionID, step)
}

// SessionPrefix matches every step key of one session.
func SessionPrefix(sessionID string) string {
	return "draft:" + sessionID + ":"
}

// Store is the local persistent key/value surface backing drafts. Writes are
// expected to succeed (local, durable storage); failures are surfaced but the
// in-memory session stays authoritative regardless.
type Store interface {
	Put(key string, d Draft) error
	Get(key string) (Draft, bool, error)
	Delete(key string) error
	DeletePrefix(prefix string) error
	List(prefix string) ([]Draft, error)
	PurgeStale(maxAge time.Duration) (int, error)
}

// GormStore persists drafts through gorm, one row per step key.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{DB: db} }

func (s *GormStore) Put(key string, d Draft) error {
	rec := models.DraftRecord{
		Key:       key,
		SessionID: d.SessionID,
		Step:      d.Step,
		Payload:   d.Payload,
		Timestamp: d.Timestamp,
	}
	return s.DB.Save(&rec).Error
}

func (s *GormStore) Get(key string) (Draft, bool, error) {
	var rec models.DraftRecord
	err := s.DB.First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, err
	}
	return recordToDraft(rec), true, nil
}

func (s *GormStore) Delete(key string) error {
	return s.DB.Delete(&models.DraftRecord{}, "key = ?", key).Error
}

func (s *GormStore) DeletePrefix(prefix string) error {
	return s.DB.Delete(&models.DraftRecord{}, "key LIKE ?", prefix+"%").Error
}

func (s *GormStore) List(prefix string) ([]Draft, error) {
	var recs []models.DraftRecord
	if err := s.DB.Where("key LIKE ?", prefix+"%").Order("step asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]Draft, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordToDraft(rec))
	}
	return out, nil
}

func (s *GormStore) PurgeStale(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	res := s.DB.Delete(&models.DraftRecord{}, "timestamp < ?", cutoff)
	return int(res.RowsAffected), res.Error
}

func recordToDraft(rec models.DraftRecord) Draft {
	return Draft{
		SessionID: rec.SessionID,
		Step:      rec.Step,
		Payload:   rec.Payload,
		Timestamp: rec.Timestamp,
	}
}

var _ Store = (*GormStore)(nil)

// keyMatches is shared by the in-memory store; kept here so both implementations
// agree on prefix semantics.
func keyMatches(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}
