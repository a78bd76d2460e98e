package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	StageStarted Type = iota + 1
	StageCompleted
	StageFailed
	StageTolerated
	DeviceResolved
	ImageAttached
	ImageDetached
	RunFinished
)

var typeNames = [...]string{
	StageStarted:   "StageStarted",
	StageCompleted: "StageCompleted",
	StageFailed:    "StageFailed",
	StageTolerated: "StageTolerated",
	DeviceResolved: "DeviceResolved",
	ImageAttached:  "ImageAttached",
	ImageDetached:  "ImageDetached",
	RunFinished:    "RunFinished",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single transition of the provisioning pipeline.
type Event struct {
	Type      Type
	Timestamp time.Time
	Step      int    // 1-based stage index, 0 for run-level events
	Stage     string // stage label
	Message   string
	Path      string // device node or mount point, depending on Type
	LogPath   string // stage log, when the stage shelled out
	ExitCode  int
	Elapsed   time.Duration
	Error     error
}
