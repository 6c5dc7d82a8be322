package recorder

import "time"

// State is a worker's position in its recording cycle.
type State int

const (
	Waiting   State = iota // blocked until the worker holds the token
	Capturing              // reading one clip from the device
	Writing                // encoding the clip to disk
	Handoff                // passing the token to the next worker
	Stopped                // the worker has exited
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Capturing:
		return "capturing"
	case Writing:
		return "writing"
	case Handoff:
		return "handoff"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Busy reports whether the state occupies the device or the clip writer.
func (s State) Busy() bool {
	return s == Capturing || s == Writing
}

// Saved describes one clip written to disk.
type Saved struct {
	Worker int
	Path   string
	Start  int64 // epoch ms, also the file name
	Frames int
	Took   time.Duration // capture + write
}

// WorkerStatus is a snapshot of one worker.
type WorkerStatus struct {
	ID                  int    `json:"id"`
	State               string `json:"state"`
	Clips               uint64 `json:"clips"`
	Failures            uint64 `json:"failures"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

// Status is a snapshot of a session.
type Status struct {
	Running  bool           `json:"running"`
	Active   int            `json:"active"`
	Saved    uint64         `json:"saved"`
	Failed   uint64         `json:"failed"`
	LastFile string         `json:"last_file,omitempty"`
	Workers  []WorkerStatus `json:"workers"`
}

func (s Status) clone() Status {
	s.Workers = append([]WorkerStatus(nil), s.Workers...)
	return s
}
