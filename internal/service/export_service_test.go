package service

import (
	"context"
	"testing"
	"time"

	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/testfixtures"
	apperrors "github.com/facilityops/facility-service/pkg/util"
)

func TestExportHistoryWindow(t *testing.T) {
	h := newHarness(t, harnessOptions{autoAssign: true})
	start := h.clock.Now()
	h.raise(t, "plumbing")
	h.clock.Advance(time.Hour)
	h.raise(t, "plumbing")

	exports := NewExportService(h.stores.History, 0)
	manager := resolver(testfixtures.Manager())
	ctx := context.Background()

	rows, err := exports.History(ctx, manager, ExportInput{From: start, To: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ChangeType != domain.ChangeTypeCreated {
		t.Fatalf("expected only the first creation inside [from, to), got %+v", rows)
	}

	if _, err := exports.History(ctx, resolver(testfixtures.Plumber()), ExportInput{From: start, To: start.Add(time.Hour)}); !apperrors.HasCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected staff export to be denied, got %v", err)
	}
	if _, err := exports.History(ctx, manager, ExportInput{From: start, To: start}); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected empty window to be rejected, got %v", err)
	}
	if _, err := exports.History(ctx, manager, ExportInput{PropertyID: testfixtures.PropertyB, From: start, To: start.Add(time.Hour)}); !apperrors.HasCode(err, apperrors.CodePermissionDenied) {
		t.Fatalf("expected foreign property to be denied, got %v", err)
	}
}
