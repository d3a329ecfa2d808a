package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
)

type recordingPublisher struct {
	outcomes []Outcome
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, o Outcome) error {
	p.outcomes = append(p.outcomes, o)
	return p.err
}

func TestProcessResponseConfirm(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(EngineOptions{Publisher: pub})
	f.dir.PutPatient(patientBoth)

	out := f.engine.ProcessPatientResponse(context.Background(), "P001", "CONFIRM", KindConfirmation)

	assert.Equal(t, ActionVisitConfirmed, out.Action)
	assert.Equal(t, "P001", out.PatientID)
	assert.Equal(t, "CONFIRM", out.Reply)
	assert.True(t, out.ReceivedAt.Equal(testNow))
	require.Len(t, pub.outcomes, 1)
	assert.Equal(t, out, pub.outcomes[0])
}

func TestProcessResponseUnknownPatient(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(EngineOptions{Publisher: pub})

	out := f.engine.ProcessPatientResponse(context.Background(), "ghost", "CONFIRM", KindConfirmation)

	assert.Equal(t, OutcomeError, out.Status)
	assert.Equal(t, ActionLookupFailed, out.Action)
	assert.Equal(t, NextStaffContact, out.NextAction)
	assert.Equal(t, "Error processing your response. Please call our office.", out.Message)
	assert.Len(t, pub.outcomes, 1)
}

func TestProcessResponseInfersKindFromLatestSent(t *testing.T) {
	f := newFixture(EngineOptions{})
	f.addAppointment("A300", patientBoth, testNow.Add(30*time.Minute))
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &Reminder{ID: "R1", AppointmentID: "A300", PatientID: "P001", Kind: KindFormCheck, ScheduledTime: testNow.Add(-4 * time.Hour), Channel: ChannelEmail, Status: StatusScheduled}))
	require.NoError(t, f.store.Create(ctx, &Reminder{ID: "R2", AppointmentID: "A300", PatientID: "P001", Kind: KindConfirmation, ScheduledTime: testNow.Add(-time.Hour), Channel: ChannelEmailAndSMS, Status: StatusScheduled}))
	require.NoError(t, f.store.MarkSent(ctx, "R1", testNow.Add(-4*time.Hour)))
	require.NoError(t, f.store.MarkSent(ctx, "R2", testNow.Add(-time.Hour)))

	out := f.engine.ProcessPatientResponse(ctx, "P001", "cancel - sick", "")

	assert.Equal(t, KindConfirmation, out.Kind)
	assert.Equal(t, ActionAppointmentCancelled, out.Action)
	assert.Equal(t, "sick", out.CancellationReason)
}

func TestProcessResponseNoKindAndNothingSent(t *testing.T) {
	f := newFixture(EngineOptions{})
	f.dir.PutPatient(patientBoth)

	out := f.engine.ProcessPatientResponse(context.Background(), "P001", "confirm", "")

	assert.Equal(t, ActionUnknownResponse, out.Action)
	assert.Equal(t, NextStaffReview, out.NextAction)
}

func TestProcessResponsePublishFailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("queue unavailable")}
	f := newFixture(EngineOptions{Publisher: pub})
	f.dir.PutPatient(patientBoth)

	out := f.engine.ProcessPatientResponse(context.Background(), "P001", "COMPLETED", KindFormCheck)

	assert.Equal(t, ActionFormsCompleted, out.Action)
	assert.Equal(t, OutcomeSuccess, out.Status)
}

func TestProcessResponseRecordsMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(EngineOptions{Metrics: metrics.NewReminderMetrics(reg)})
	f.dir.PutPatient(patientBoth)

	f.engine.ProcessPatientResponse(context.Background(), "P001", "reschedule", KindConfirmation)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, fam := range families {
		if fam.GetName() == "clinic_reminders_responses_total" {
			found = true
			assert.Equal(t, float64(1), fam.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}
