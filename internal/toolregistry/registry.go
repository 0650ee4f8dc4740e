// Package toolregistry implements a tool registry: named, batch-aware
// actions the workflow engine dispatches into, gated by an approval
// threshold on destructive/high-volume batches.
package toolregistry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// Auto-approve thresholds. Batches at or under
// autoApproveLimit dispatch immediately with no record. Batches at or under
// auditedApproveLimit dispatch immediately but leave an audit trail. Larger
// batches are blocked pending admin approval.
const (
	autoApproveLimit    = 10
	auditedApproveLimit = 50
)

// ErrPendingApproval is returned when a batch exceeds the auto-approve
// threshold. The action is NOT dispatched — a pending-approval record is
// written instead, and the caller must re-invoke Execute once an admin
// approves it (the approval UI itself lives outside this package).
var ErrPendingApproval = errors.New("toolregistry: batch exceeds auto-approve threshold, pending approval")

// ErrUnknownTool is returned by Execute for an unregistered tool name.
var ErrUnknownTool = errors.New("toolregistry: unknown tool")

// ErrBatchLimitExceeded is returned by Execute when a tool declares a
// Metadata.BatchLimit and the inferred batch size exceeds it. Unlike the
// approval gate, this is a hard failure — the action is never dispatched.
var ErrBatchLimitExceeded = errors.New("toolregistry: batch size exceeds tool's batch limit")

// Metadata describes a registered tool's dispatch characteristics.
type Metadata struct {
	Type             string
	BatchLimit       int
	RequiresApproval bool
}

// Func is the signature every registered tool implements.
type Func func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// ApprovalStore persists the audit trail for auto-approved large batches
// and the pending record for batches that exceed the threshold entirely.
type ApprovalStore interface {
	CreateAuditRecord(ctx context.Context, rec *ApprovalRecord) error
	CreatePendingApproval(ctx context.Context, rec *ApprovalRecord) error
}

// ApprovalRecord is one audit or pending-approval entry.
type ApprovalRecord struct {
	Key       string
	Action    string
	BatchSize int
	Inputs    map[string]any
	CreatedAt time.Time
}

type registeredTool struct {
	fn       Func
	metadata Metadata
}

// Registry holds named tools and enforces the approval gate on dispatch.
type Registry struct {
	tools     map[string]registeredTool
	approvals ApprovalStore
	nowFunc   func() time.Time
}

func NewRegistry(approvals ApprovalStore) *Registry {
	return &Registry{
		tools:     make(map[string]registeredTool),
		approvals: approvals,
		nowFunc:   time.Now,
	}
}

// Register adds a tool under name, overwriting any prior registration.
func (r *Registry) Register(name string, fn Func, metadata Metadata) {
	r.tools[name] = registeredTool{fn: fn, metadata: metadata}
}

// Execute dispatches the named tool, first inferring the request's batch
// size and applying the approval gate if the tool requires one.
func (r *Registry) Execute(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	batchSize := inferBatchSize(inputs)

	if limit := tool.metadata.BatchLimit; limit > 0 && batchSize > limit {
		return nil, fmt.Errorf("%w: %s batch size %d exceeds limit %d", ErrBatchLimitExceeded, name, batchSize, limit)
	}

	if tool.metadata.RequiresApproval {
		if err := r.gate(ctx, name, batchSize, inputs); err != nil {
			return nil, err
		}
	}

	return tool.fn(ctx, inputs)
}

// gate applies the three-tier approval policy. It returns nil when the
// action may proceed (auto-approved, with or without an audit record), and
// ErrPendingApproval when it must not.
func (r *Registry) gate(ctx context.Context, action string, batchSize int, inputs map[string]any) error {
	switch {
	case batchSize <= autoApproveLimit:
		return nil

	case batchSize <= auditedApproveLimit:
		rec := &ApprovalRecord{
			Key:       approvalKey(action, r.nowFunc()),
			Action:    action,
			BatchSize: batchSize,
			Inputs:    inputs,
			CreatedAt: r.nowFunc(),
		}
		if err := r.approvals.CreateAuditRecord(ctx, rec); err != nil {
			return fmt.Errorf("toolregistry: write audit record: %w", err)
		}
		return nil

	default:
		rec := &ApprovalRecord{
			Key:       approvalKey(action, r.nowFunc()),
			Action:    action,
			BatchSize: batchSize,
			Inputs:    inputs,
			CreatedAt: r.nowFunc(),
		}
		if err := r.approvals.CreatePendingApproval(ctx, rec); err != nil {
			return fmt.Errorf("toolregistry: write pending approval: %w", err)
		}
		return ErrPendingApproval
	}
}

func approvalKey(action string, now time.Time) string {
	return fmt.Sprintf("%s_%d", action, now.UnixMilli())
}

// inferBatchSize applies this precedence: the combined length of
// auto_approve_list + review_queue if either is present, else the length of
// contacts, else the length of leads, else 1 (a non-batch action).
func inferBatchSize(inputs map[string]any) int {
	autoLen := sliceLen(inputs["auto_approve_list"])
	reviewLen := sliceLen(inputs["review_queue"])
	if autoLen+reviewLen > 0 {
		return autoLen + reviewLen
	}
	if n := sliceLen(inputs["contacts"]); n > 0 {
		return n
	}
	if n := sliceLen(inputs["leads"]); n > 0 {
		return n
	}
	return 1
}

func sliceLen(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return 0
	}
	return rv.Len()
}
