package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	ruleIDKey     contextKey = "rule_id"
	scanIDKey     contextKey = "scan_id"
	workflowIDKey contextKey = "workflow_id"
	runIDKey      contextKey = "workflow_run_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithRuleID adds a search rule ID to the context.
func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, ruleIDKey, ruleID)
}

// RuleIDFromContext retrieves the search rule ID from context.
// Returns empty string if not present.
func RuleIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ruleIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithScanID adds a scan ID to the context.
func WithScanID(ctx context.Context, scanID string) context.Context {
	return context.WithValue(ctx, scanIDKey, scanID)
}

// ScanIDFromContext retrieves the scan ID from context.
// Returns empty string if not present.
func ScanIDFromContext(ctx context.Context) string {
	if v := ctx.Value(scanIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithWorkflow adds workflow ID and run ID to the context.
func WithWorkflow(ctx context.Context, workflowID, runID string) context.Context {
	ctx = context.WithValue(ctx, workflowIDKey, workflowID)
	ctx = context.WithValue(ctx, runIDKey, runID)
	return ctx
}

// WorkflowFromContext retrieves workflow ID and run ID from context.
// Returns empty strings if not present.
func WorkflowFromContext(ctx context.Context) (workflowID, runID string) {
	if v := ctx.Value(workflowIDKey); v != nil {
		if id, ok := v.(string); ok {
			workflowID = id
		}
	}
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			runID = id
		}
	}
	return workflowID, runID
}

// ScanContext contains all the context data for a rule scan.
type ScanContext struct {
	RequestID  string
	RuleID     string
	ScanID     string
	WorkflowID string
	RunID      string
}

// WithScanContextFull adds all scan context to the context.
func WithScanContextFull(ctx context.Context, sc ScanContext) context.Context {
	if sc.RequestID != "" {
		ctx = WithRequestID(ctx, sc.RequestID)
	}
	if sc.RuleID != "" {
		ctx = WithRuleID(ctx, sc.RuleID)
	}
	if sc.ScanID != "" {
		ctx = WithScanID(ctx, sc.ScanID)
	}
	if sc.WorkflowID != "" || sc.RunID != "" {
		ctx = WithWorkflow(ctx, sc.WorkflowID, sc.RunID)
	}
	return ctx
}

// ScanContextFromContext extracts all scan context from the context.
func ScanContextFromContext(ctx context.Context) ScanContext {
	workflowID, runID := WorkflowFromContext(ctx)

	return ScanContext{
		RequestID:  RequestIDFromContext(ctx),
		RuleID:     RuleIDFromContext(ctx),
		ScanID:     ScanIDFromContext(ctx),
		WorkflowID: workflowID,
		RunID:      runID,
	}
}
