// Package workflows defines Temporal workflow implementations for scheduled
// rule scanning.
package workflows

import (
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	pvtemporal "github.com/trialsignal/pharmacovigilance-service/internal/temporal"
	"github.com/trialsignal/pharmacovigilance-service/internal/temporal/activities"
	"github.com/trialsignal/pharmacovigilance-service/internal/vigilance"
)

// Re-export signal/query name constants from the parent temporal package for
// convenience. These are defined in the parent package so the server layer can
// reference them without depending on the workflows package.
const (
	SignalRunNow        = pvtemporal.SignalRunNow
	QuerySchedulerState = pvtemporal.QuerySchedulerState
)

// Activity timeout constants.
const (
	syncActivityTimeout     = 10 * time.Minute
	evaluateActivityTimeout = 15 * time.Minute
	listActivityTimeout     = 30 * time.Second
)

// Scheduler defaults applied when the input leaves a field zero.
const (
	defaultPollInterval       = 1 * time.Minute
	defaultMaxConcurrentScans = 4

	// passesPerRun bounds the event history of one scheduler run. The
	// workflow continues as new after this many passes.
	passesPerRun = 50
)

// SchedulerInput configures the scan scheduler workflow.
type SchedulerInput struct {
	// PollInterval is the pause between scheduler passes.
	PollInterval time.Duration

	// MaxConcurrentScans caps the number of rule scans running in parallel.
	MaxConcurrentScans int

	// SyncQuery is the PubMed term used to pull new articles before each
	// pass. Empty disables the sync step.
	SyncQuery string

	// SyncWindow is how far back the article sync looks.
	SyncWindow time.Duration

	// SyncMaxResults caps the number of articles fetched per sync.
	SyncMaxResults int
}

// SchedulerState tracks scheduler progress, exposed via the
// QuerySchedulerState query handler.
type SchedulerState struct {
	Passes         int       `json:"passes"`
	ScansStarted   int       `json:"scans_started"`
	ScansFailed    int       `json:"scans_failed"`
	ArticlesSynced int       `json:"articles_synced"`
	LastPassAt     time.Time `json:"last_pass_at"`
}

// RuleScanInput contains the parameters for a single rule scan workflow.
type RuleScanInput struct {
	// RuleID identifies the search rule to scan.
	RuleID uuid.UUID

	// Trigger records what initiated the scan. Defaults to "scheduled".
	Trigger string
}

// RuleScanResult contains the outcome of a single rule scan workflow.
type RuleScanResult struct {
	RuleID          uuid.UUID
	ArticlesScanned int
	Matched         int
	Created         int
	Refreshed       int
	DurationSeconds float64
}

// ScanSchedulerWorkflow drives scheduled rule evaluation.
//
// Each pass syncs new articles from PubMed (when configured), lists the rules
// whose next scan is due, and runs one RuleScanWorkflow child per rule with
// bounded concurrency. The scheduler then sleeps until the poll interval
// elapses or a "run_now" signal arrives. After a fixed number of passes the
// workflow continues as new to keep its event history small.
//
// Child workflows use rule-derived workflow IDs, so a scan started manually
// through the API and a scheduled scan for the same rule cannot overlap.
func ScanSchedulerWorkflow(ctx workflow.Context, input SchedulerInput) error {
	logger := workflow.GetLogger(ctx)
	workflowInfo := workflow.GetInfo(ctx)

	pollInterval := input.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxConcurrent := input.MaxConcurrentScans
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentScans
	}

	state := &SchedulerState{}
	err := workflow.SetQueryHandler(ctx, QuerySchedulerState, func() (*SchedulerState, error) {
		return state, nil
	})
	if err != nil {
		logger.Error("failed to register scheduler state query handler", "error", err)
		return err
	}

	wakeCh := workflow.GetSignalChannel(ctx, SignalRunNow)

	// Activity nil-pointer variables for method references.
	var syncAct *activities.SyncActivities
	var scanAct *activities.ScanActivities

	syncCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: syncActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    1 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: listActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	})

	for pass := 0; pass < passesPerRun; pass++ {
		// Drain queued wake signals so a burst triggers a single pass.
		for wakeCh.ReceiveAsync(nil) {
		}

		// Pull new articles before evaluating rules against the store.
		// Sync failures are logged and skipped so a PubMed outage does not
		// stall scheduled scans of already stored articles.
		if input.SyncQuery != "" {
			var from *time.Time
			if input.SyncWindow > 0 {
				t := workflow.Now(ctx).Add(-input.SyncWindow).UTC()
				from = &t
			}

			var syncOut activities.SyncArticlesOutput
			err := workflow.ExecuteActivity(syncCtx, syncAct.SyncArticles, activities.SyncArticlesInput{
				Query:      input.SyncQuery,
				From:       from,
				MaxResults: input.SyncMaxResults,
			}).Get(ctx, &syncOut)
			if err != nil {
				logger.Warn("article sync failed, continuing with stored articles", "error", err)
			} else if !syncOut.Skipped {
				state.ArticlesSynced += syncOut.Stored
				logger.Info("articles synced", "fetched", syncOut.Fetched, "stored", syncOut.Stored)
			}
		}

		var dueOut activities.ListDueRulesOutput
		err := workflow.ExecuteActivity(listCtx, scanAct.ListDueRules, activities.ListDueRulesInput{
			Now: workflow.Now(ctx).UTC(),
		}).Get(ctx, &dueOut)
		if err != nil {
			logger.Error("failed to list due rules", "error", err)
		} else if len(dueOut.RuleIDs) > 0 {
			logger.Info("starting scans for due rules", "count", len(dueOut.RuleIDs))
			runScanBatches(ctx, dueOut.RuleIDs, maxConcurrent, workflowInfo.TaskQueueName, state)
		}

		state.Passes++
		state.LastPassAt = workflow.Now(ctx)

		// Sleep until the next pass or an early wake signal.
		timerCtx, cancelTimer := workflow.WithCancel(ctx)
		timer := workflow.NewTimer(timerCtx, pollInterval)

		selector := workflow.NewSelector(ctx)
		selector.AddFuture(timer, func(workflow.Future) {})
		selector.AddReceive(wakeCh, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, nil)
			logger.Info("woken by run_now signal")
			cancelTimer()
		})
		selector.Select(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	logger.Info("scheduler run complete, continuing as new", "passes", state.Passes)
	return workflow.NewContinueAsNewError(ctx, ScanSchedulerWorkflow, input)
}

// runScanBatches executes RuleScanWorkflow children in chunks of size
// maxConcurrent, collecting each chunk before starting the next. Futures are
// resolved in start order to keep the workflow deterministic.
func runScanBatches(ctx workflow.Context, ruleIDs []uuid.UUID, maxConcurrent int, taskQueue string, state *SchedulerState) {
	logger := workflow.GetLogger(ctx)

	for start := 0; start < len(ruleIDs); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(ruleIDs) {
			end = len(ruleIDs)
		}
		chunk := ruleIDs[start:end]

		futures := make([]workflow.ChildWorkflowFuture, 0, len(chunk))
		for _, ruleID := range chunk {
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
				WorkflowID:               pvtemporal.RuleScanWorkflowID(ruleID),
				TaskQueue:                taskQueue,
				WorkflowExecutionTimeout: pvtemporal.DefaultScanExecutionTimeout,
			})

			futures = append(futures, workflow.ExecuteChildWorkflow(childCtx, RuleScanWorkflow, RuleScanInput{
				RuleID:  ruleID,
				Trigger: vigilance.TriggerScheduled,
			}))
			state.ScansStarted++
		}

		for i, future := range futures {
			var result RuleScanResult
			if err := future.Get(ctx, &result); err != nil {
				// A manual scan holding the rule's workflow ID or lock
				// surfaces here. The rule is picked up again next pass.
				state.ScansFailed++
				logger.Warn("rule scan failed", "ruleID", chunk[i], "error", err)
				continue
			}
			logger.Info("rule scan completed",
				"ruleID", result.RuleID,
				"articlesScanned", result.ArticlesScanned,
				"matched", result.Matched,
				"created", result.Created,
			)
		}
	}
}

// RuleScanWorkflow evaluates a single search rule against the article store.
//
// It wraps the EvaluateRule activity, which acquires the rule's advisory lock,
// pages through stored articles, records results, and sends notifications.
func RuleScanWorkflow(ctx workflow.Context, input RuleScanInput) (*RuleScanResult, error) {
	logger := workflow.GetLogger(ctx)

	trigger := input.Trigger
	if trigger == "" {
		trigger = vigilance.TriggerScheduled
	}

	var scanAct *activities.ScanActivities

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: evaluateActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    1 * time.Minute,
			MaximumAttempts:    3,
		},
	})

	var out activities.EvaluateRuleOutput
	err := workflow.ExecuteActivity(actCtx, scanAct.EvaluateRule, activities.EvaluateRuleInput{
		RuleID:  input.RuleID,
		Trigger: trigger,
	}).Get(ctx, &out)
	if err != nil {
		logger.Error("rule evaluation failed", "ruleID", input.RuleID, "error", err)
		return nil, err
	}

	return &RuleScanResult{
		RuleID:          out.RuleID,
		ArticlesScanned: out.ArticlesScanned,
		Matched:         out.Matched,
		Created:         out.Created,
		Refreshed:       out.Refreshed,
		DurationSeconds: out.DurationSeconds,
	}, nil
}
