// Package roster keeps the ordered list of registered students, persisted as
// one JSON snapshot under a single key of a kv.Store.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/educlass/portal/internal/kv"
	"github.com/educlass/portal/internal/models"
)

const snapshotKey = "students"

// StorageError reports that the snapshot could not be written. The roster is
// left as it was before the failed call.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "roster storage: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

type Store struct {
	mu      sync.Mutex
	kv      kv.Store
	log     logrus.FieldLogger
	records []models.StudentRecord
	// stale is set while the last load could not reach the backing store;
	// the snapshot must be read again before it can be overwritten.
	stale bool
}

func NewStore(backing kv.Store, log logrus.FieldLogger) *Store {
	return &Store{kv: backing, log: log}
}

// Load replaces the in-memory roster with the persisted snapshot. A missing
// or unreadable snapshot yields an empty roster.
func (s *Store) Load(ctx context.Context) []models.StudentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		s.log.WithError(err).Warn("roster: backing store unavailable, starting empty")
	}
	return s.copyLocked()
}

func (s *Store) loadLocked(ctx context.Context) error {
	s.records = nil
	raw, found, err := s.kv.Get(ctx, snapshotKey)
	if err != nil {
		s.stale = true
		return err
	}
	s.stale = false
	if !found {
		return nil
	}
	var recs []models.StudentRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		s.log.WithError(err).Warn("roster: malformed snapshot, starting empty")
		return nil
	}
	s.records = recs
	return nil
}

// refreshLocked rereads a snapshot that could not be loaded earlier. Writing
// before that succeeds would replace the persisted roster.
func (s *Store) refreshLocked(ctx context.Context) error {
	if !s.stale {
		return nil
	}
	if err := s.loadLocked(ctx); err != nil {
		return &StorageError{Err: err}
	}
	s.log.WithField("students", len(s.records)).Info("roster: snapshot reloaded")
	return nil
}

// Append adds rec to the end of the roster and persists the whole snapshot.
func (s *Store) Append(ctx context.Context, rec models.StudentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return err
	}
	return s.appendLocked(ctx, rec)
}

// AppendNew mints an unused student id, builds the record with it and
// appends it, all under the store lock.
func (s *Store) AppendNew(ctx context.Context, now time.Time, build func(studentID string) models.StudentRecord) (models.StudentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(ctx); err != nil {
		return models.StudentRecord{}, err
	}
	id, err := NextStudentID(now, s.takenLocked)
	if err != nil {
		return models.StudentRecord{}, err
	}
	rec := build(id)
	rec.StudentID = id
	if err := s.appendLocked(ctx, rec); err != nil {
		return models.StudentRecord{}, err
	}
	return rec, nil
}

func (s *Store) appendLocked(ctx context.Context, rec models.StudentRecord) error {
	s.records = append(s.records, rec)
	b, err := json.Marshal(s.records)
	if err == nil {
		err = s.kv.Set(ctx, snapshotKey, string(b))
	}
	if err != nil {
		s.records = s.records[:len(s.records)-1]
		return &StorageError{Err: err}
	}
	return nil
}

func (s *Store) takenLocked(id string) bool {
	for _, r := range s.records {
		if r.StudentID == id {
			return true
		}
	}
	return false
}

// Find returns the first record matching pred.
func (s *Store) Find(pred func(models.StudentRecord) bool) (models.StudentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if pred(r) {
			return r, true
		}
	}
	return models.StudentRecord{}, false
}

func (s *Store) FindByStudentID(id string) (models.StudentRecord, bool) {
	return s.Find(func(r models.StudentRecord) bool { return r.StudentID == id })
}

func (s *Store) FindByEmail(email string) (models.StudentRecord, bool) {
	return s.Find(func(r models.StudentRecord) bool { return strings.EqualFold(r.Email, email) })
}

// Query filters the roster in order. term matches case-insensitively against
// full name, email and student id; course must match exactly when set.
func (s *Store) Query(term, course string) []models.StudentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(term)
	out := make([]models.StudentRecord, 0, len(s.records))
	for _, r := range s.records {
		if course != "" && r.Course != course {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.FullName), needle) &&
			!strings.Contains(strings.ToLower(r.Email), needle) &&
			!strings.Contains(strings.ToLower(r.StudentID), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) All() []models.StudentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) copyLocked() []models.StudentRecord {
	out := make([]models.StudentRecord, len(s.records))
	copy(out, s.records)
	return out
}

const idSpace = 100_000_000

// NextStudentID returns "STU" plus eight digits. The digits start at the
// clock's milliseconds mod 10^8 and advance until taken reports false.
func NextStudentID(now time.Time, taken func(string) bool) (string, error) {
	n := now.UnixMilli() % idSpace
	if n < 0 {
		n += idSpace
	}
	for i := 0; i < idSpace; i++ {
		id := fmt.Sprintf("STU%08d", n)
		if !taken(id) {
			return id, nil
		}
		n = (n + 1) % idSpace
	}
	return "", fmt.Errorf("student id space exhausted")
}
