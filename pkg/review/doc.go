// Package review provides the core types and rules for the backtest review
// workflow. It defines the four-stage approval pipeline
// (ConfigReview -> Backtest -> ComparisonReview -> FinalReview), the
// reviewer-set approval semantics, the gating preconditions for advancing a
// unit through the pipeline, and the summary status derivation used by
// dashboard-level reporting.
package review
