package toolregistry

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeApprovals struct {
	audited []*ApprovalRecord
	pending []*ApprovalRecord
}

func (f *fakeApprovals) CreateAuditRecord(ctx context.Context, rec *ApprovalRecord) error {
	f.audited = append(f.audited, rec)
	return nil
}

func (f *fakeApprovals) CreatePendingApproval(ctx context.Context, rec *ApprovalRecord) error {
	f.pending = append(f.pending, rec)
	return nil
}

func noopTool(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(&fakeApprovals{})
	_, err := r.Execute(context.Background(), "nonexistent", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistry_ExecuteNoApprovalRequired(t *testing.T) {
	approvals := &fakeApprovals{}
	r := NewRegistry(approvals)
	r.Register("send_email", noopTool, Metadata{Type: "email", RequiresApproval: false})

	contacts := make([]any, 1000)
	out, err := r.Execute(context.Background(), "send_email", map[string]any{"contacts": contacts})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["ok"] != true {
		t.Errorf("expected tool to dispatch, got %+v", out)
	}
	if len(approvals.audited) != 0 || len(approvals.pending) != 0 {
		t.Error("expected no approval bookkeeping when RequiresApproval=false regardless of batch size")
	}
}

func TestRegistry_GateAutoApprovesSmallBatch(t *testing.T) {
	approvals := &fakeApprovals{}
	r := NewRegistry(approvals)
	r.Register("send_email", noopTool, Metadata{RequiresApproval: true})

	contacts := make([]any, 10)
	_, err := r.Execute(context.Background(), "send_email", map[string]any{"contacts": contacts})
	if err != nil {
		t.Fatalf("unexpected error for batch at auto-approve limit: %v", err)
	}
	if len(approvals.audited) != 0 || len(approvals.pending) != 0 {
		t.Errorf("expected no records for auto-approved batch, got audited=%d pending=%d", len(approvals.audited), len(approvals.pending))
	}
}

func TestRegistry_GateAuditsMediumBatch(t *testing.T) {
	approvals := &fakeApprovals{}
	r := NewRegistry(approvals)
	r.Register("send_email", noopTool, Metadata{RequiresApproval: true})

	contacts := make([]any, 50)
	_, err := r.Execute(context.Background(), "send_email", map[string]any{"contacts": contacts})
	if err != nil {
		t.Fatalf("unexpected error for batch at audited limit: %v", err)
	}
	if len(approvals.audited) != 1 {
		t.Fatalf("expected 1 audit record for medium batch, got %d", len(approvals.audited))
	}
	if approvals.audited[0].BatchSize != 50 {
		t.Errorf("expected recorded batch size 50, got %d", approvals.audited[0].BatchSize)
	}
}

func TestRegistry_GateBlocksLargeBatch(t *testing.T) {
	approvals := &fakeApprovals{}
	r := NewRegistry(approvals)
	dispatched := false
	r.Register("send_email", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		dispatched = true
		return nil, nil
	}, Metadata{RequiresApproval: true})

	contacts := make([]any, 51)
	_, err := r.Execute(context.Background(), "send_email", map[string]any{"contacts": contacts})
	if !errors.Is(err, ErrPendingApproval) {
		t.Fatalf("expected ErrPendingApproval, got %v", err)
	}
	if dispatched {
		t.Error("tool must not dispatch while pending approval")
	}
	if len(approvals.pending) != 1 || approvals.pending[0].BatchSize != 51 {
		t.Errorf("expected 1 pending record with batch size 51, got %+v", approvals.pending)
	}
}

func TestRegistry_BatchLimitExceededFailsBeforeApprovalGate(t *testing.T) {
	approvals := &fakeApprovals{}
	r := NewRegistry(approvals)
	dispatched := false
	r.Register("launch_agent", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		dispatched = true
		return nil, nil
	}, Metadata{BatchLimit: 5, RequiresApproval: true})

	contacts := make([]any, 1000)
	_, err := r.Execute(context.Background(), "launch_agent", map[string]any{"contacts": contacts})
	if !errors.Is(err, ErrBatchLimitExceeded) {
		t.Fatalf("expected ErrBatchLimitExceeded, got %v", err)
	}
	if dispatched {
		t.Error("tool must not dispatch when batch limit is exceeded")
	}
	if len(approvals.audited) != 0 || len(approvals.pending) != 0 {
		t.Error("batch limit failure must short-circuit before the approval gate writes any record")
	}
	if !strings.Contains(err.Error(), "1000") || !strings.Contains(err.Error(), "5") {
		t.Errorf("expected error to carry actual-vs-limit detail, got %q", err.Error())
	}
}

func TestRegistry_BatchLimitAtExactlyLimitPasses(t *testing.T) {
	approvals := &fakeApprovals{}
	r := NewRegistry(approvals)
	r.Register("launch_agent", noopTool, Metadata{BatchLimit: 5})

	contacts := make([]any, 5)
	if _, err := r.Execute(context.Background(), "launch_agent", map[string]any{"contacts": contacts}); err != nil {
		t.Fatalf("unexpected error for batch exactly at limit: %v", err)
	}
}

func TestRegistry_ZeroBatchLimitMeansUnbounded(t *testing.T) {
	r := NewRegistry(&fakeApprovals{})
	r.Register("launch_agent", noopTool, Metadata{BatchLimit: 0})

	contacts := make([]any, 1000)
	if _, err := r.Execute(context.Background(), "launch_agent", map[string]any{"contacts": contacts}); err != nil {
		t.Fatalf("unexpected error with unset batch limit: %v", err)
	}
}

func TestInferBatchSize_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		inputs map[string]any
		want   int
	}{
		{"auto_approve_list plus review_queue combined", map[string]any{
			"auto_approve_list": make([]any, 3),
			"review_queue":      make([]any, 2),
			"contacts":          make([]any, 100),
		}, 5},
		{"contacts when no approve/review lists", map[string]any{"contacts": make([]any, 7)}, 7},
		{"leads when no contacts", map[string]any{"leads": make([]any, 4)}, 4},
		{"defaults to 1 for non-batch action", map[string]any{"to": "a@example.com"}, 1},
		{"nil input value treated as absent", map[string]any{"contacts": nil, "leads": make([]any, 2)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferBatchSize(tt.inputs); got != tt.want {
				t.Errorf("inferBatchSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRegistry_RegisterOverwritesByName(t *testing.T) {
	r := NewRegistry(&fakeApprovals{})
	r.Register("tool", noopTool, Metadata{Type: "first"})
	called := false
	r.Register("tool", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		called = true
		return nil, nil
	}, Metadata{Type: "second"})

	if _, err := r.Execute(context.Background(), "tool", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected the second registration to overwrite the first")
	}
}
