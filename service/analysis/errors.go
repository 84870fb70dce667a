package analysis

import "fmt"

// ConfigError reports an invalid analysis parameter. It is returned before
// any network call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// StageError tags an unrecoverable failure with the pipeline stage it came
// from. The orchestrator returns it alongside whatever partial report the
// completed stages produced.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage names used in StageError and timing metrics.
const (
	StageTokenOverview      = "token_overview"
	StageExtractBuyers      = "extract_buyers"
	StageClassifyWallets    = "classify_wallets"
	StageComputePnL         = "compute_pnl"
	StageDetectInteractions = "detect_interactions"
)
