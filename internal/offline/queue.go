package offline

import (
	"encoding/json"
	"sync"
	"time"

	apperrors "precioverdadero/internal/errors"
	"precioverdadero/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Queue holds comments that have not been accepted by the server yet.
// Items keep submission order. A corrupt or unreadable store reads as an
// empty queue for List. Enqueue and Remove refuse to write over a store
// they could not read, so a transient read error never drops queued items.
type Queue struct {
	mu     sync.Mutex
	store  Store
	logger *logrus.Logger
	now    func() time.Time
	newID  func() (string, error)
}

func NewQueue(store Store, logger *logrus.Logger) *Queue {
	return &Queue{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  newPendingID,
	}
}

// newPendingID returns a UUIDv7: millisecond timestamp plus random bits.
func newPendingID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewID returns an id for a comment that may be queued later with
// EnqueueWithID.
func (q *Queue) NewID() (string, error) {
	return q.newID()
}

// Enqueue stores a new pending comment and returns it. It returns nil and
// a PERSISTENCE error when the record could not be written.
func (q *Queue) Enqueue(input models.CommentInput) (*models.PendingComment, error) {
	id, err := q.newID()
	if err != nil {
		return nil, apperrors.NewPersistenceError("generate id", err)
	}
	return q.EnqueueWithID(id, input)
}

// EnqueueWithID is Enqueue with an id chosen by the caller, normally the
// idempotency key of an earlier direct attempt.
func (q *Queue) EnqueueWithID(id string, input models.CommentInput) (*models.PendingComment, error) {
	pending := models.PendingComment{
		ID:        id,
		Name:      input.Name,
		Email:     input.Email,
		Text:      input.Text,
		Timestamp: q.now().UTC().Format(time.RFC3339Nano),
		Status:    models.StatusPending,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.readLocked()
	if err != nil {
		return nil, apperrors.NewPersistenceError("load", err).WithContext("pending_id", id)
	}
	items = append(items, pending)
	if err := q.writeLocked(items); err != nil {
		return nil, apperrors.NewPersistenceError("save", err).WithContext("pending_id", id)
	}

	q.logger.WithFields(logrus.Fields{
		"pending_id":  id,
		"queue_depth": len(items),
	}).Debug("Comment queued locally")
	return &pending, nil
}

// List returns every pending comment in insertion order.
func (q *Queue) List() []models.PendingComment {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, err := q.readLocked()
	if err != nil {
		q.logger.WithError(err).Warn("Pending comment store unreadable, treating as empty")
	}
	return items
}

// Len returns the number of pending comments.
func (q *Queue) Len() int {
	return len(q.List())
}

// Remove deletes the comment with the given id. Removing an id that is not
// queued is a no-op and does not touch the store.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.readLocked()
	if err != nil {
		return apperrors.NewPersistenceError("load", err).WithContext("pending_id", id)
	}
	kept := items[:0:0]
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	if err := q.writeLocked(kept); err != nil {
		return apperrors.NewPersistenceError("remove", err).WithContext("pending_id", id)
	}
	return nil
}

// Clear drops every pending comment.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.writeLocked([]models.PendingComment{}); err != nil {
		return apperrors.NewPersistenceError("clear", err)
	}
	return nil
}

// readLocked returns an error only when the store could not be read. A
// missing or corrupt blob reads as empty and is overwritten by the next save.
func (q *Queue) readLocked() ([]models.PendingComment, error) {
	data, err := q.store.Load()
	if err != nil {
		return []models.PendingComment{}, err
	}
	if len(data) == 0 {
		return []models.PendingComment{}, nil
	}

	var items []models.PendingComment
	if err := json.Unmarshal(data, &items); err != nil {
		q.logger.WithError(err).Warn("Pending comment store corrupt, treating as empty")
		return []models.PendingComment{}, nil
	}
	if items == nil {
		items = []models.PendingComment{}
	}
	return items, nil
}

func (q *Queue) writeLocked(items []models.PendingComment) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return q.store.Save(data)
}
