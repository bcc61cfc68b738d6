package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/facilityops/facility-service/internal/auth"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/sla"
	"github.com/facilityops/facility-service/internal/worker"
)

func init() {
	color.NoColor = true
}

func TestWriteBreaches(t *testing.T) {
	assignee := "staff-plumber"
	var out bytes.Buffer
	err := writeBreaches(&out, []worker.Breach{{
		Ticket: &domain.Ticket{
			DisplayCode: "FAC-1",
			PropertyID:  "prop-a",
			Priority:    domain.TicketPriorityCritical,
			Status:      domain.TicketStatusInProgress,
			AssigneeID:  &assignee,
		},
		Threshold:   time.Hour,
		ServiceTime: 90*time.Minute + 20*time.Second,
	}})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{"FAC-1", "critical", "staff-plumber", "30m0s", "1 breach(es)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}

	out.Reset()
	if err := writeBreaches(&out, nil); err != nil || !strings.Contains(out.String(), "no breaches") {
		t.Fatalf("expected empty report, got %q %v", out.String(), err)
	}
}

func TestWritePolicy(t *testing.T) {
	policy, err := sla.ParsePolicy([]byte(`
categories:
  electrical:
    skills: [electrical, general]
    thresholds:
      critical: 30m
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var out bytes.Buffer
	if err := writePolicy(&out, policy); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	text := out.String()
	for _, want := range []string{"critical", "1h0m0s", "72h0m0s", "electrical", "skills: electrical, general", "30m0s"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestTokenCommandMintsVerifiableToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	cmd := TokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--sub", "staff-1", "--role", "staff", "--org", "org-1", "--property", "prop-a,prop-b", "--quiet"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	claims, err := auth.NewTokenManager("cli-secret", 60).ParseToken(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	actor, err := claims.Actor()
	if err != nil {
		t.Fatalf("actor failed: %v", err)
	}
	if actor.ID != "staff-1" || actor.Role.Name() != domain.RoleStaff || len(actor.PropertyIDs) != 2 {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestTokenCommandRejectsSystemRole(t *testing.T) {
	cmd := TokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--sub", "x", "--role", "system"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected system role to be rejected")
	}
}
