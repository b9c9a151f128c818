// Package lock defines the serialization boundary for calendar mutations.
package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-scheduling/internal/apperror"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
)

var (
	ErrNotAcquired  = errors.New("calendar lock not acquired")
	ErrCalendarBusy = apperror.Conflict("calendar is being modified, please retry")
)

// Locker runs fn while holding every key exclusively.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// Run is WithLock with acquisition failures reported as ErrCalendarBusy.
func Run(ctx context.Context, l Locker, keys []string, fn func(ctx context.Context) error) error {
	err := l.WithLock(ctx, keys, fn)
	if errors.Is(err, ErrNotAcquired) {
		return fmt.Errorf("%w: %w", ErrCalendarBusy, err)
	}
	return err
}

// PractitionerDay is the lock key guarding one practitioner's calendar day.
func PractitionerDay(practitionerID uuid.UUID, d calendar.Date) string {
	return fmt.Sprintf("practitioner:%s:date:%s", practitionerID, d)
}

// Normalize de-duplicates and sorts keys so that every caller acquires them
// in the same order.
func Normalize(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker. Waiters block until the key is free or ctx ends.
type Local struct {
	mu    sync.Mutex
	slots map[string]*entry
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*entry)}
}

func (l *Local) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = Normalize(keys)
	held := make([]string, 0, len(keys))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}()

	for _, key := range keys {
		if err := l.acquire(ctx, key); err != nil {
			return fmt.Errorf("%w: %v", ErrNotAcquired, err)
		}
		held = append(held, key)
	}
	return fn(ctx)
}

func (l *Local) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	e, ok := l.slots[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.slots[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(key, e)
		return ctx.Err()
	}
}

func (l *Local) release(key string) {
	l.mu.Lock()
	e := l.slots[key]
	<-e.ch
	l.mu.Unlock()
	l.unref(key, e)
}

func (l *Local) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.slots, key)
	}
}
