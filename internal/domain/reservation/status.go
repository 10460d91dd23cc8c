package reservation

import "time"

// RunType records how a run was triggered. It does not change automation
// behavior.
type RunType string

const (
	RunTypeManual  RunType = "manual"
	RunTypeAutorun RunType = "autorun"
)

// RunState is the coarse lifecycle state of a run.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StateSuccess RunState = "success"
	StateFailed  RunState = "failed"
	StateStopped RunState = "stopped"
)

// Terminal reports whether the state is final for a run instance. The
// config's next run starts a fresh status.
func (s RunState) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateStopped:
		return true
	}
	return false
}

// RunStatus is the last-known status of a config's run. Reason is set only
// when State is StateFailed.
type RunStatus struct {
	State  RunState `json:"state"`
	Reason string   `json:"reason,omitempty"`
}

func Idle() RunStatus    { return RunStatus{State: StateIdle} }
func Running() RunStatus { return RunStatus{State: StateRunning} }
func Success() RunStatus { return RunStatus{State: StateSuccess} }
func Stopped() RunStatus { return RunStatus{State: StateStopped} }
func Failed(reason string) RunStatus {
	return RunStatus{State: StateFailed, Reason: reason}
}

// RunRecord is the persisted per-config outcome of the most recent run.
type RunRecord struct {
	ConfigID  string    `json:"config_id"`
	RunType   RunType   `json:"run_type"`
	Status    RunStatus `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VerificationEmail is a code-bearing message fetched from the mailbox on
// demand. Never persisted.
type VerificationEmail struct {
	From     string
	Subject  string
	Body     string
	Received time.Time
}
