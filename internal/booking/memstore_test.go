package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"decorbook/internal/apperr"
	"decorbook/internal/catalog"
	"decorbook/internal/user"
)

// memStore mirrors the version and uniqueness checks of the Postgres repository.
type memStore struct {
	mu       sync.Mutex
	bookings map[string]Booking
	payments map[string]Payment
	events   []Event

	// afterGet, when set, runs after every Get outside the lock.
	afterGet func()
}

func newMemStore() *memStore {
	return &memStore{bookings: map[string]Booking{}, payments: map[string]Payment{}}
}

func checkShape(b *Booking) error {
	if b.Status.HasDecorator() != (b.AssignedDecorator != nil) {
		return fmt.Errorf("decorator/status mismatch: status=%s decorator=%v", b.Status, b.AssignedDecorator)
	}
	return nil
}

func (s *memStore) Insert(_ context.Context, b *Booking, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkShape(b); err != nil {
		return err
	}
	s.bookings[b.ID] = *b
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*Booking, error) {
	s.mu.Lock()
	b, ok := s.bookings[id]
	hook := s.afterGet
	s.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("booking %s not found", id)
	}
	if hook != nil {
		hook()
	}
	return &b, nil
}

func (s *memStore) updateLocked(b *Booking, expectedVersion int) error {
	cur, ok := s.bookings[b.ID]
	if !ok {
		return apperr.NotFound("booking %s not found", b.ID)
	}
	if cur.Version != expectedVersion {
		return apperr.New(apperr.KindConflict, "booking %s was modified concurrently", b.ID)
	}
	if err := checkShape(b); err != nil {
		return err
	}
	if b.Version != expectedVersion+1 {
		return fmt.Errorf("version not bumped: %d -> %d", expectedVersion, b.Version)
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *memStore) Update(_ context.Context, b *Booking, expectedVersion int, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateLocked(b, expectedVersion); err != nil {
		return err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) InsertPayment(_ context.Context, b *Booking, expectedVersion int, p *Payment, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.payments[p.TransactionID]; dup {
		return apperr.New(apperr.KindConflict, "transaction %s already recorded", p.TransactionID)
	}
	for _, existing := range s.payments {
		if existing.BookingID == p.BookingID {
			return apperr.New(apperr.KindConflict, "booking %s already has a payment", p.BookingID)
		}
	}
	if err := s.updateLocked(b, expectedVersion); err != nil {
		return err
	}
	s.payments[p.TransactionID] = *p
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) PaymentByTransaction(_ context.Context, txn string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[txn]
	if !ok {
		return nil, apperr.NotFound("payment %s not found", txn)
	}
	return &p, nil
}

func (s *memStore) List(_ context.Context, f Filter) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Booking{}
	for _, b := range s.bookings {
		if f.CustomerEmail != "" && !strings.EqualFold(b.CustomerEmail, f.CustomerEmail) {
			continue
		}
		if f.DecoratorEmail != "" && !b.AssignedTo(f.DecoratorEmail) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.BookingDate != "" && b.BookingDate != f.BookingDate {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) Events(_ context.Context, bookingID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Event{}
	for _, e := range s.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// raceBarrier holds the first n Get callers until all n have read, so their
// writes race on the same version. Later calls pass straight through.
func raceBarrier(n int) func() {
	var wg sync.WaitGroup
	wg.Add(n)
	var calls atomic.Int32
	return func() {
		if calls.Add(1) > int32(n) {
			return
		}
		wg.Done()
		wg.Wait()
	}
}

type memServices map[string]*catalog.Service

func (m memServices) FindByID(_ context.Context, id string) (*catalog.Service, error) {
	s, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("service %s not found", id)
	}
	cp := *s
	return &cp, nil
}

type memUsers map[string]*user.User

func (m memUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	u, ok := m[user.NormalizeEmail(email)]
	if !ok {
		return nil, apperr.NotFound("user %s not found", email)
	}
	return u, nil
}
