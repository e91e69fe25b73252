// Package observability provides logging and metrics support for the
// pharmacovigilance service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for scans, results, reviews, and sources
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("rule_id", ruleID).Msg("scan started")
//
// Add rule context to a logger:
//
//	logger = observability.WithRuleContext(logger, ruleID, ruleName)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("pharmacovigilance")
//
// Record metrics:
//
//	metrics.RecordScanStarted("manual")
//	metrics.RecordResultsRecorded(created, refreshed)
//	metrics.ArticlesSynced.WithLabelValues("pubmed").Add(42)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithRuleID(ctx, ruleID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	ruleID := observability.RuleIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - rule_id: Search rule identifier
//   - rule_name: Search rule name
//   - scan_id: Evaluation pass identifier
//   - trigger: What initiated a scan (manual, scheduled)
//   - pmid: PubMed article identifier
//   - source: Upstream article source (pubmed)
//   - workflow_id: Temporal workflow identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
