package reminders

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", &bytes.Buffer{})
}

type sentEmail struct {
	To, Subject, Body string
}

type sentSMS struct {
	To, Text string
}

// fakeTransport records sends. Blank addresses fail, as do channels flagged to fail.
type fakeTransport struct {
	mu        sync.Mutex
	emails    []sentEmail
	sms       []sentSMS
	failEmail bool
	failSMS   bool
}

func (f *fakeTransport) SendEmail(_ context.Context, address, subject, body string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, sentEmail{To: address, Subject: subject, Body: body})
	return !f.failEmail && strings.TrimSpace(address) != ""
}

func (f *fakeTransport) SendSMS(_ context.Context, number, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sms = append(f.sms, sentSMS{To: number, Text: text})
	return !f.failSMS && strings.TrimSpace(number) != ""
}

func (f *fakeTransport) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails) + len(f.sms)
}

// fixture wires an engine over in-memory stores at testNow.
type fixture struct {
	store     *MemoryStore
	dir       *MemoryDirectory
	transport *fakeTransport
	engine    *Engine
}

func newFixture(opts EngineOptions) *fixture {
	f := &fixture{
		store:     NewMemoryStore(),
		dir:       NewMemoryDirectory(),
		transport: &fakeTransport{},
	}
	if opts.Clock == nil {
		opts.Clock = fixedClock(testNow)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	f.engine = NewEngine(f.store, f.dir, f.dir, f.transport, opts, quietLogger())
	return f
}

// addAppointment stores a patient and an appointment at start (UTC).
func (f *fixture) addAppointment(id string, p Patient, start time.Time) {
	f.dir.PutPatient(p)
	f.dir.PutAppointment(Appointment{
		ID:         id,
		PatientID:  p.ID,
		Date:       start.Format("2006-01-02"),
		Time:       start.Format("15:04"),
		DoctorName: "Patel",
	})
}

var (
	patientBoth  = Patient{ID: "P001", Name: "Ana Ruiz", Email: "ana@example.com", Phone: "+15551230001"}
	patientEmail = Patient{ID: "P002", Name: "Ben Cho", Email: "ben@example.com"}
	patientSMS   = Patient{ID: "P003", Name: "Cy Obi", Phone: "+15551230003"}
	patientNone  = Patient{ID: "P004", Name: "Dee Lang"}
)
