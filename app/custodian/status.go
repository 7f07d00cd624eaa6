package custodian

import "time"

// NodeStatus is the engine's last word on a node: which step touched it, at
// which height, and whether it failed. Read by the API for operator triage.
type NodeStatus struct {
	Step   string    `json:"step"`
	Height uint64    `json:"height"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

func (e *Engine) record(address, step string, height uint64, err error) {
	st := NodeStatus{Step: step, Height: height, At: e.cfg.Now()}
	if err != nil {
		st.Error = err.Error()
	}
	e.Status.Store(address, st)
}

// StatusFor returns the last recorded status for a node address.
func (e *Engine) StatusFor(address string) (NodeStatus, bool) {
	return e.Status.Load(address)
}
