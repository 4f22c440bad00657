package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/repository"
	"ubertool-reminder-dispatch/internal/service"
)

// memStore implements the three repositories over in-memory tables with the same
// uniqueness and compare-and-set semantics as the SQL in internal/repository/postgres.
type memStore struct {
	mu         sync.Mutex
	lines      []domain.RentalLine
	recipients map[int32]domain.BookingRecipient
	logs       map[int64]*domain.ReminderClaim
	byKey      map[domain.NaturalKey]int64
	nextID     int64

	dueBetweenCalls atomic.Int32
	dueBeforeCalls  atomic.Int32
	logCalls        atomic.Int32

	dueBetweenErr error
	recipientsErr error
	listSentErr   error
	insertErr     map[int32]error // by booking id
}

func newMemStore() *memStore {
	return &memStore{
		recipients: map[int32]domain.BookingRecipient{},
		logs:       map[int64]*domain.ReminderClaim{},
		byKey:      map[domain.NaturalKey]int64{},
		insertErr:  map[int32]error{},
	}
}

func (s *memStore) addLine(bookingID int32, status domain.RentalStatus, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, domain.RentalLine{BookingID: bookingID, ItemID: int32(len(s.lines) + 1), Status: status, EndDate: end})
}

func (s *memStore) addRecipient(bookingID int32, number, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients[bookingID] = domain.BookingRecipient{BookingID: bookingID, BookingNumber: number, Email: email}
}

func (s *memStore) seed(c domain.ReminderClaim) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	s.logs[c.ID] = &c
	s.byKey[c.Key()] = c.ID
	return c.ID
}

func (s *memStore) row(key domain.NaturalKey) *domain.ReminderClaim {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil
	}
	cp := *s.logs[id]
	return &cp
}

func (s *memStore) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

func isActive(st domain.RentalStatus, statuses []domain.RentalStatus) bool {
	for _, a := range statuses {
		if a == st {
			return true
		}
	}
	return false
}

func (s *memStore) matchIDs(statuses []domain.RentalStatus, match func(time.Time) bool) []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int32]bool{}
	var ids []int32
	for _, l := range s.lines {
		if isActive(l.Status, statuses) && match(l.EndDate) && !seen[l.BookingID] {
			seen[l.BookingID] = true
			ids = append(ids, l.BookingID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *memStore) ListBookingsDueBetween(ctx context.Context, start, end time.Time, statuses []domain.RentalStatus) ([]int32, error) {
	s.dueBetweenCalls.Add(1)
	if s.dueBetweenErr != nil {
		return nil, s.dueBetweenErr
	}
	return s.matchIDs(statuses, func(t time.Time) bool { return !t.Before(start) && !t.After(end) }), nil
}

func (s *memStore) ListBookingsDueBefore(ctx context.Context, t time.Time, statuses []domain.RentalStatus) ([]int32, error) {
	s.dueBeforeCalls.Add(1)
	return s.matchIDs(statuses, func(end time.Time) bool { return end.Before(t) }), nil
}

func (s *memStore) EarliestActiveEndDate(ctx context.Context, bookingID int32, statuses []domain.RentalStatus) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best time.Time
	found := false
	for _, l := range s.lines {
		if l.BookingID == bookingID && isActive(l.Status, statuses) && (!found || l.EndDate.Before(best)) {
			best, found = l.EndDate, true
		}
	}
	if !found {
		return time.Time{}, repository.ErrNotFound
	}
	return best, nil
}

func (s *memStore) ListByBookingIDs(ctx context.Context, ids []int32) ([]domain.BookingRecipient, error) {
	if s.recipientsErr != nil {
		return nil, s.recipientsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BookingRecipient
	for _, id := range ids {
		if r, ok := s.recipients[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) ListSent(ctx context.Context, date string, ids []int32) ([]domain.NaturalKey, error) {
	s.logCalls.Add(1)
	if s.listSentErr != nil {
		return nil, s.listSentErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[int32]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var keys []domain.NaturalKey
	for _, c := range s.logs {
		if c.ReminderDate == date && c.Status == domain.ClaimStatusSent && want[c.BookingID] {
			keys = append(keys, c.Key())
		}
	}
	return keys, nil
}

func (s *memStore) InsertClaim(ctx context.Context, c *domain.ReminderClaim) (bool, error) {
	s.logCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertErr[c.BookingID]; err != nil {
		return false, err
	}
	if _, exists := s.byKey[c.Key()]; exists {
		return false, nil
	}
	s.nextID++
	c.ID = s.nextID
	c.Attempt = 1
	c.Status = domain.ClaimStatusClaimed
	cp := *c
	s.logs[c.ID] = &cp
	s.byKey[c.Key()] = c.ID
	return true, nil
}

func (s *memStore) GetByKey(ctx context.Context, key domain.NaturalKey) (*domain.ReminderClaim, error) {
	s.logCalls.Add(1)
	if c := s.row(key); c != nil {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) Adopt(ctx context.Context, id int64, observed int32, now, staleBefore time.Time) (int32, bool, error) {
	s.logCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.logs[id]
	if !ok || c.Attempt != observed || c.SentAt != nil {
		return 0, false, nil
	}
	adoptable := c.Status == domain.ClaimStatusFailed ||
		(c.Status == domain.ClaimStatusClaimed && c.ClaimedAt.Before(staleBefore))
	if !adoptable {
		return 0, false, nil
	}
	c.Status = domain.ClaimStatusClaimed
	c.ClaimedAt = now
	c.Attempt++
	c.Error = nil
	return c.Attempt, true, nil
}

func (s *memStore) MarkSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	s.logCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.logs[id]
	if !ok || c.SentAt != nil {
		return false, nil
	}
	c.Status = domain.ClaimStatusSent
	c.SentAt = &sentAt
	c.Error = nil
	return true, nil
}

func (s *memStore) MarkFailed(ctx context.Context, id int64, attempt int32, reason string) (bool, error) {
	s.logCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.logs[id]
	if !ok || c.Attempt != attempt || c.SentAt != nil {
		return false, nil
	}
	c.Status = domain.ClaimStatusFailed
	c.Error = &reason
	return true, nil
}

// fakeMailer records deliveries. Addresses in failFor make the transport error;
// addresses in rejectFor are refused by the provider.
type fakeMailer struct {
	mu        sync.Mutex
	sent      []*service.Message
	failFor   map[string]bool
	rejectFor map[string]bool
	delay     time.Duration
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failFor: map[string]bool{}, rejectFor: map[string]bool{}}
}

func (m *fakeMailer) Send(ctx context.Context, msg *service.Message) (*service.DeliveryReport, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	to := msg.To[0]
	if m.failFor[to] {
		return nil, errors.New("smtp: connection refused")
	}
	if m.rejectFor[to] {
		return &service.DeliveryReport{Rejected: msg.To}, nil
	}
	m.sent = append(m.sent, msg)
	return &service.DeliveryReport{Accepted: msg.To}, nil
}

func (m *fakeMailer) sentTo(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.sent {
		if msg.To[0] == email {
			n++
		}
	}
	return n
}

func (m *fakeMailer) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) setFail(email string, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[email] = fail
}
