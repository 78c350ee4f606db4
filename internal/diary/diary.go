// Package diary holds the committed food entries for the current day and
// derives the calorie and macro figures shown on the dashboard.
package diary

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/franckalain/mealscan/internal/errors"
	"github.com/franckalain/mealscan/internal/models"
)

// maxIDAttempts bounds the search for an id not already in the diary.
const maxIDAttempts = 8

// Store persists diary entries. Writes go through before the in-memory
// diary changes.
type Store interface {
	SaveFoodEntry(ctx context.Context, entry *models.FoodEntry) error
	DeleteFoodEntry(ctx context.Context, id string) error
}

// Diary is an ordered list of entries, most recent first. It is safe for
// concurrent use.
type Diary struct {
	mu      sync.RWMutex
	entries []models.FoodEntry
	ids     map[string]struct{}

	store Store
	newID func() string
	now   func() time.Time
	log   logrus.FieldLogger
}

// Option configures a Diary.
type Option func(*Diary)

// WithStore enables write-through persistence.
func WithStore(s Store) Option {
	return func(d *Diary) { d.store = s }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Diary) { d.log = l }
}

// WithIDGenerator replaces uuid generation.
func WithIDGenerator(fn func() string) Option {
	return func(d *Diary) { d.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(d *Diary) { d.now = fn }
}

// New creates an empty diary.
func New(opts ...Option) *Diary {
	d := &Diary{
		ids:   make(map[string]struct{}),
		newID: uuid.NewString,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Commit turns a confirmed draft into an entry and places it first. The
// entry gets its own copy of the image bytes. If the store rejects the
// entry the diary is left unchanged.
func (d *Diary) Commit(ctx context.Context, draft models.ScanDraft, img models.ImageBuffer) (models.FoodEntry, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return models.FoodEntry{}, apperrors.New(apperrors.ErrInvalid, "draft has no name")
	}
	if draft.Calories < 0 {
		return models.FoodEntry{}, apperrors.New(apperrors.ErrInvalid, "draft has negative calories")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.uniqueID()
	if err != nil {
		return models.FoodEntry{}, err
	}

	now := d.now()
	entry := models.FoodEntry{
		ID:         id,
		Name:       draft.Name,
		Calories:   draft.Calories,
		Time:       draft.Time,
		Image:      img.Clone(),
		Macros:     draft.Macros,
		Weight:     draft.Weight,
		Confidence: draft.Confidence,
		CreatedAt:  now,
	}
	if entry.Time == "" {
		entry.Time = now.Format(models.TimeLayout)
	}

	if d.store != nil {
		if err := d.store.SaveFoodEntry(ctx, &entry); err != nil {
			return models.FoodEntry{}, apperrors.Wrap(apperrors.ErrDatabase, "failed to save food entry", err)
		}
	}

	d.entries = append([]models.FoodEntry{entry}, d.entries...)
	d.ids[id] = struct{}{}

	d.log.WithFields(logrus.Fields{
		"entry_id": id,
		"name":     entry.Name,
		"calories": entry.Calories,
	}).Info("food entry committed")
	return entry, nil
}

// uniqueID must be called with d.mu held.
func (d *Diary) uniqueID() (string, error) {
	for range maxIDAttempts {
		id := d.newID()
		if id == "" {
			continue
		}
		if _, taken := d.ids[id]; !taken {
			return id, nil
		}
	}
	return "", apperrors.New(apperrors.ErrInternal, "could not allocate a unique entry id")
}

// Entries returns the entries, most recent first. The slice is a copy;
// image bytes are shared and must not be modified.
func (d *Diary) Entries() []models.FoodEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.FoodEntry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of entries.
func (d *Diary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Get returns the entry with the given id.
func (d *Diary) Get(id string) (models.FoodEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.FoodEntry{}, false
}

// Delete removes an entry by id.
func (d *Diary) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := -1
	for i, e := range d.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperrors.New(apperrors.ErrNotFound, "food entry not found: "+id)
	}

	if d.store != nil {
		if err := d.store.DeleteFoodEntry(ctx, id); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete food entry", err)
		}
	}

	d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
	delete(d.ids, id)
	d.log.WithField("entry_id", id).Info("food entry deleted")
	return nil
}

// Restore replaces the diary contents with entries loaded from storage.
// Entries must already be ordered most recent first.
func (d *Diary) Restore(entries []models.FoodEntry) error {
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return apperrors.New(apperrors.ErrInvalid, "restored entry has no id")
		}
		if _, dup := ids[e.ID]; dup {
			return apperrors.New(apperrors.ErrInvalid, "duplicate entry id: "+e.ID)
		}
		ids[e.ID] = struct{}{}
	}

	restored := make([]models.FoodEntry, len(entries))
	copy(restored, entries)

	d.mu.Lock()
	d.entries = restored
	d.ids = ids
	d.mu.Unlock()

	d.log.WithField("count", len(entries)).Info("diary restored")
	return nil
}
