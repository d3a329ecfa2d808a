package reminders

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// dueEntry is a queue slot for a scheduled reminder. Entries go stale when the
// reminder leaves the scheduled state or is pushed out by a retry; stale
// entries are dropped when they reach the front.
type dueEntry struct {
	id  string
	at  time.Time
	seq uint64
}

type dueQueue []dueEntry

func (q dueQueue) Len() int { return len(q) }
func (q dueQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}
func (q dueQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *dueQueue) Push(x any)   { *q = append(*q, x.(dueEntry)) }
func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// MemoryStore is an in-process ReminderStore backed by a min-heap on
// scheduled_time. It is used by tests and the local CLI.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Reminder
	order   []string
	queue   dueQueue
	seq     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Reminder)}
}

func (s *MemoryStore) Create(_ context.Context, r *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.ID]; exists {
		return fmt.Errorf("reminders: create reminder: duplicate id %s", r.ID)
	}
	if r.Status == "" {
		r.Status = StatusScheduled
	}
	cp := *r
	s.records[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	if cp.Status == StatusScheduled {
		s.enqueue(cp.ID, cp.ScheduledTime)
	}
	return nil
}

func (s *MemoryStore) enqueue(id string, at time.Time) {
	s.seq++
	heap.Push(&s.queue, dueEntry{id: id, at: at, seq: s.seq})
}

func (s *MemoryStore) live(e dueEntry) bool {
	r, ok := s.records[e.id]
	return ok && r.Status == StatusScheduled && r.ScheduledTime.Equal(e.at)
}

func (s *MemoryStore) ListDue(_ context.Context, asOf time.Time) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keep []dueEntry
	seen := make(map[string]bool)
	due := []Reminder{}
	for s.queue.Len() > 0 && !s.queue[0].at.After(asOf) {
		e := heap.Pop(&s.queue).(dueEntry)
		if !s.live(e) || seen[e.id] {
			continue
		}
		seen[e.id] = true
		keep = append(keep, e)
		due = append(due, *s.records[e.id])
	}
	for _, e := range keep {
		heap.Push(&s.queue, e)
	}
	return due, nil
}

func (s *MemoryStore) scheduled(id, op string) (*Reminder, error) {
	r, ok := s.records[id]
	if !ok || r.Status != StatusScheduled {
		return nil, fmt.Errorf("reminders: %s: no scheduled reminder with id %s: %w", op, id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.scheduled(id, "mark sent")
	if err != nil {
		return err
	}
	at := sentAt
	r.Status = StatusSent
	r.SentAt = &at
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id string, retryCount int, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.scheduled(id, "mark failed")
	if err != nil {
		return err
	}
	r.Status = StatusFailed
	r.RetryCount = retryCount
	r.Notes = note
	return nil
}

func (s *MemoryStore) MarkSkipped(_ context.Context, id string, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.scheduled(id, "mark skipped")
	if err != nil {
		return err
	}
	r.Status = StatusSkipped
	r.Notes = note
	return nil
}

func (s *MemoryStore) ScheduleRetry(_ context.Context, id string, retryCount int, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.scheduled(id, "schedule retry")
	if err != nil {
		return err
	}
	r.RetryCount = retryCount
	r.ScheduledTime = next
	s.enqueue(id, next)
	return nil
}

func (s *MemoryStore) filter(match func(*Reminder) bool) []Reminder {
	out := []Reminder{}
	for _, id := range s.order {
		if r := s.records[id]; match(r) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

func (s *MemoryStore) ListByAppointment(_ context.Context, appointmentID string) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(r *Reminder) bool { return r.AppointmentID == appointmentID }), nil
}

func (s *MemoryStore) ListByPatient(_ context.Context, patientID string) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(r *Reminder) bool { return r.PatientID == patientID }), nil
}

// ListAll returns up to limit reminders, newest first.
func (s *MemoryStore) ListAll(_ context.Context, limit int) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Reminder{}
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *s.records[s.order[i]])
	}
	return out, nil
}

func (s *MemoryStore) LatestSentForPatient(_ context.Context, patientID string) (*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Reminder
	for _, id := range s.order {
		r := s.records[id]
		if r.PatientID != patientID || r.Status != StatusSent || r.SentAt == nil {
			continue
		}
		if latest == nil || !r.SentAt.Before(*latest.SentAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("reminders: latest sent for patient %s: %w", patientID, ErrNotFound)
	}
	cp := *latest
	return &cp, nil
}

// Get returns a copy of one reminder.
func (s *MemoryStore) Get(id string) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Reminder{}, false
	}
	return *r, true
}

// MemoryDirectory is an in-process AppointmentLookup and PatientLookup.
type MemoryDirectory struct {
	mu           sync.RWMutex
	appointments map[string]Appointment
	patients     map[string]Patient
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		appointments: make(map[string]Appointment),
		patients:     make(map[string]Patient),
	}
}

func (d *MemoryDirectory) PutAppointment(a Appointment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appointments[a.ID] = a
}

func (d *MemoryDirectory) PutPatient(p Patient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patients[p.ID] = p
}

func (d *MemoryDirectory) DeleteAppointment(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.appointments, id)
}

func (d *MemoryDirectory) GetAppointment(_ context.Context, id string) (*Appointment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

func (d *MemoryDirectory) GetPatient(_ context.Context, id string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.patients[id]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, ErrNotFound)
	}
	return &p, nil
}
