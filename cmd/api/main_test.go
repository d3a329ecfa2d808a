package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/clinic-reminders/cmd/mainconfig"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

func TestSetupMetricsExposesReminderCounters(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveScheduled("regular", "email")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinic_reminders_scheduled_total") {
		t.Fatalf("expected scheduled counter to be exported")
	}
}

func TestConnectPostgresEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := mainconfig.ConnectPostgres(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}
