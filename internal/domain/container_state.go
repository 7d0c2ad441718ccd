package domain

import "time"

type Status string

const (
	StatusStarting   Status = "starting"
	StatusRunning    Status = "running"
	StatusExited     Status = "exited"
	StatusKilled     Status = "killed"
	StatusRestarting Status = "restarting"
	StatusPaused     Status = "paused"
	StatusRemoved    Status = "removed"
	StatusUnknown    Status = "unknown"
)

// StatusFor derives the status a container is in after the given action.
func StatusFor(a Action) Status {
	switch a {
	case ActionStart, ActionUnpause, ActionRestart:
		return StatusRunning
	case ActionDie, ActionStop:
		return StatusExited
	case ActionKill, ActionOOM:
		return StatusKilled
	case ActionPause:
		return StatusPaused
	case ActionDestroy:
		return StatusRemoved
	default:
		return StatusUnknown
	}
}

// ContainerState is the advisory, last-known state of a container.
type ContainerState struct {
	Container    ContainerRef
	Status       Status
	LastExitCode *int
	LastSeenAt   time.Time
}

func (s ContainerState) IsRunning() bool {
	return s.Status == StatusRunning || s.Status == StatusStarting || s.Status == StatusRestarting
}
