package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinic-reminders/internal/notify"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

type demoStep struct {
	Step   string `json:"step"`
	Result any    `json:"result"`
}

// runDemo walks one appointment through scheduling, every sweep and a reply,
// using in-memory storage and stub senders.
func runDemo(ctx context.Context, start time.Time, logger *logging.Logger) ([]demoStep, error) {
	store := reminders.NewMemoryStore()
	dir := reminders.NewMemoryDirectory()
	dir.PutPatient(reminders.Patient{ID: "P-DEMO", Name: "Jordan Demo", Email: "jordan@example.com", Phone: "+15550100"})

	appt := start.Add(25 * time.Hour)
	dir.PutAppointment(reminders.Appointment{
		ID:         "APT-DEMO-000001",
		PatientID:  "P-DEMO",
		Date:       appt.Format("2006-01-02"),
		Time:       appt.Format("15:04"),
		DoctorName: "Rivera",
	})

	now := start
	transport := notify.NewTransport(notify.NewStubEmailSender(logger), notify.NewStubSMSSender(logger), logger)
	engine := reminders.NewEngine(store, dir, dir, transport, reminders.EngineOptions{
		Location: start.Location(),
		Clock:    func() time.Time { return now },
	}, logger)

	steps := []demoStep{{Step: "schedule", Result: engine.ScheduleRemindersForAppointment(ctx, "APT-DEMO-000001")}}
	for _, before := range []time.Duration{24 * time.Hour, 4 * time.Hour, time.Hour} {
		now = appt.Add(-before)
		steps = append(steps, demoStep{
			Step:   fmt.Sprintf("sweep at T-%s", before),
			Result: engine.CheckAndSendDueReminders(ctx, now),
		})
	}
	steps = append(steps, demoStep{Step: "reply", Result: engine.ProcessPatientResponse(ctx, "P-DEMO", "CONFIRM", "")})

	report, err := engine.Status(ctx, reminders.StatusQuery{AppointmentID: "APT-DEMO-000001"})
	if err != nil {
		return nil, err
	}
	return append(steps, demoStep{Step: "status", Result: report.Summary}), nil
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the reminder lifecycle against in-memory storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := runDemo(cmd.Context(), time.Now().Truncate(time.Minute), logging.New("warn"))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), steps)
		},
	}
}
