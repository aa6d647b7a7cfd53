package driver

import "time"

// Stage describes one step of a run.
type Stage string

const (
	StageLoad        Stage = "load"
	StageDecode      Stage = "decode"
	StageScan        Stage = "scan"
	StagePopulate    Stage = "populate"
	StageSignatures  Stage = "signatures"
	StageIncremental Stage = "incremental"
	StageAnalyze     Stage = "analyze"
	StageSave        Stage = "save"
)

// Stages lists the steps of a run in execution order.
var Stages = []Stage{
	StageLoad, StageDecode, StageScan, StagePopulate,
	StageSignatures, StageIncremental, StageAnalyze, StageSave,
}

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	// StatusError marks a file that was skipped or a stage that failed.
	StatusError Status = "error"
)

// Event reports progress for a file, or for the whole run when File is empty.
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from the goroutine
// running the session, never concurrently.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent describes a timing phase boundary.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events emitted during Session.Run.
type PhaseObserver func(PhaseEvent)
