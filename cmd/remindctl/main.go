package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/clinic-reminders/cmd/mainconfig"
	"github.com/wolfman30/clinic-reminders/internal/app/bootstrap"
	"github.com/wolfman30/clinic-reminders/internal/archive"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// engineFactory builds the engine a command runs against. Tests swap it for
// an in-memory engine.
type engineFactory func(ctx context.Context) (*reminders.Engine, func(), error)

func rootCmd() *cobra.Command {
	return newRootCmd(postgresEngine)
}

func newRootCmd(build engineFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "remindctl",
		Short:         "Operate the appointment reminder engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		scheduleCmd(build),
		sweepCmd(build),
		respondCmd(build),
		statusCmd(build),
		sendCmd(build),
		archiveCmd(s3Manifests),
		demoCmd(),
	)
	return root
}

func postgresEngine(ctx context.Context) (*reminders.Engine, func(), error) {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		return nil, nil, fmt.Errorf("DATABASE_URL is required and must be reachable")
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("load AWS config: %w", err)
	}
	publisher, closePublisher := bootstrap.BuildPublisher(cfg, &awsCfg, nil, logger)
	engine := bootstrap.BuildEngine(cfg, bootstrap.EngineDeps{
		DB:        pool,
		Transport: bootstrap.BuildTransport(cfg, &awsCfg, logger),
		Publisher: publisher,
	}, logger)
	cleanup := func() {
		_ = closePublisher()
		pool.Close()
	}
	return engine, cleanup, nil
}

func withEngine(cmd *cobra.Command, build engineFactory, fn func(ctx context.Context, e *reminders.Engine) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	engine, cleanup, err := build(ctx)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	out, err := fn(ctx, engine)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scheduleCmd(build engineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <appointment-id>",
		Short: "Create the reminder set for an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, build, func(ctx context.Context, e *reminders.Engine) (any, error) {
				return e.ScheduleRemindersForAppointment(ctx, args[0]), nil
			})
		},
	}
}

func sweepCmd(build engineFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Send every reminder that is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("as-of")
			var asOf time.Time
			if raw != "" {
				t, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				asOf = t
			}
			return withEngine(cmd, build, func(ctx context.Context, e *reminders.Engine) (any, error) {
				return e.CheckAndSendDueReminders(ctx, asOf), nil
			})
		},
	}
	cmd.Flags().String("as-of", "", "Sweep as of this RFC3339 instant instead of now")
	return cmd
}

func respondCmd(build engineFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "respond <patient-id> <reply>",
		Short: "Interpret a patient's reply to a reminder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawKind, _ := cmd.Flags().GetString("kind")
			kind := reminders.NormalizeKind(rawKind)
			return withEngine(cmd, build, func(ctx context.Context, e *reminders.Engine) (any, error) {
				return e.ProcessPatientResponse(ctx, args[0], args[1], kind), nil
			})
		},
	}
	cmd.Flags().String("kind", "", "Reminder kind being answered (form_check, confirmation); inferred when empty")
	return cmd
}

func statusCmd(build engineFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List reminders with per-status counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			appointmentID, _ := cmd.Flags().GetString("appointment")
			patientID, _ := cmd.Flags().GetString("patient")
			limit, _ := cmd.Flags().GetInt("limit")
			return withEngine(cmd, build, func(ctx context.Context, e *reminders.Engine) (any, error) {
				return e.Status(ctx, reminders.StatusQuery{AppointmentID: appointmentID, PatientID: patientID, Limit: limit})
			})
		},
	}
	cmd.Flags().String("appointment", "", "Filter by appointment ID")
	cmd.Flags().String("patient", "", "Filter by patient ID")
	cmd.Flags().Int("limit", 0, "Maximum reminders when no filter is given")
	return cmd
}

func sendCmd(build engineFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "send <appointment-id> <kind>",
		Short: "Send one reminder kind immediately without recording it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := reminders.ParseKind(args[1])
			if !ok {
				return fmt.Errorf("unknown reminder kind %q", args[1])
			}
			return withEngine(cmd, build, func(ctx context.Context, e *reminders.Engine) (any, error) {
				return e.SendManual(ctx, args[0], kind)
			})
		},
	}
}

type manifestReader interface {
	ReadManifest(ctx context.Context, at time.Time) ([]archive.ManifestEntry, error)
}

func s3Manifests(ctx context.Context) (manifestReader, error) {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	store := bootstrap.BuildArchive(cfg, &awsCfg, "remindctl", logger)
	if store == nil {
		return nil, fmt.Errorf("SWEEP_ARCHIVE_BUCKET is not set")
	}
	return store, nil
}

func archiveCmd(open func(ctx context.Context) (manifestReader, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List archived sweeps for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("month")
			month := time.Now().UTC()
			if raw != "" {
				t, err := time.Parse("2006-01", raw)
				if err != nil {
					return fmt.Errorf("invalid --month, want YYYY-MM: %w", err)
				}
				month = t
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			reader, err := open(ctx)
			if err != nil {
				return err
			}
			entries, err := reader.ReadManifest(ctx, month)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []archive.ManifestEntry{}
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().String("month", "", "Month to list as YYYY-MM (default current month)")
	return cmd
}
