package analysis

import (
	"gocompare/domain/core"
)

// Status is the terminal state of a task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TaskError is the serialisable failure of one task.
type TaskError struct {
	Kind    core.ErrorKind `json:"kind"`
	Message string         `json:"message"`
}

// Outcome is the per-task result variant: exactly one of Result or Err is set.
type Outcome struct {
	Task         Task
	Decision     Decision
	Descriptives []DescriptiveRow
	Result       *TestResult
	Err          error
}

// Succeeded builds a success outcome.
func Succeeded(task Task, decision Decision, rows []DescriptiveRow, result *TestResult) Outcome {
	return Outcome{Task: task, Decision: decision, Descriptives: rows, Result: result}
}

// Failed builds a failure outcome. Descriptive rows computed before the
// failure are kept.
func Failed(task Task, decision Decision, rows []DescriptiveRow, err error) Outcome {
	if decision.Method == "" {
		decision.Method = MethodUndetermined
	}
	return Outcome{Task: task, Decision: decision, Descriptives: rows, Err: err}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// Record is one row of a BatchResult.
type Record struct {
	Task                Task             `json:"task"`
	Status              Status           `json:"status"`
	Decision            Decision         `json:"decision"`
	Descriptives        []DescriptiveRow `json:"descriptives"`
	Result              *TestResult      `json:"result,omitempty"`
	RawP                *float64         `json:"raw_p,omitempty"`
	AdjustedP           *float64         `json:"adjusted_p,omitempty"`
	Significant         bool             `json:"significant"`
	AdjustedSignificant bool             `json:"adjusted_significant"`
	Error               *TaskError       `json:"error,omitempty"`
}

// Strategy is the MemoryGovernor's execution decision.
type Strategy string

const (
	StrategyFull    Strategy = "full"
	StrategyChunked Strategy = "chunked"
	StrategySampled Strategy = "sampled"
)

// Execution describes how the batch was executed.
type Execution struct {
	Strategy        Strategy `json:"strategy"`
	Estimate        float64  `json:"estimate"`
	Rows            int      `json:"rows"`
	Subjects        int      `json:"subjects"`
	Sampled         bool     `json:"sampled"`
	SampledSubjects int      `json:"sampled_subjects,omitempty"`
	SampleFraction  float64  `json:"sample_fraction"`
	Seed            int64    `json:"seed"`
	Workers         int      `json:"workers"`
}

// Summary holds run-level counts.
type Summary struct {
	Total               int                    `json:"total"`
	Succeeded           int                    `json:"succeeded"`
	Failed              int                    `json:"failed"`
	FailuresByKind      map[core.ErrorKind]int `json:"failures_by_kind,omitempty"`
	SignificantRaw      int                    `json:"significant_raw"`
	SignificantAdjusted int                    `json:"significant_adjusted"`
	MethodCounts        map[Method]int         `json:"method_counts,omitempty"`
}

// BatchResult is the immutable output of one batch invocation.
type BatchResult struct {
	RunID       core.RunID `json:"run_id"`
	Mode        Mode       `json:"mode"`
	Alpha       float64    `json:"alpha"`
	Correction  string     `json:"correction"`
	Records     []Record   `json:"records"`
	Summary     Summary    `json:"summary"`
	Execution   Execution  `json:"execution"`
	Fingerprint core.Hash  `json:"fingerprint"`
}

// Failures returns the failed records in order.
func (b *BatchResult) Failures() []Record {
	var out []Record
	for _, r := range b.Records {
		if r.Status == StatusFailed {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the record for the target label, if present.
func (b *BatchResult) Find(target string) (Record, bool) {
	for _, r := range b.Records {
		if r.Task.Target == target {
			return r, true
		}
	}
	return Record{}, false
}
