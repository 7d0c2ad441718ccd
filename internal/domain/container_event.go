package domain

import (
	"errors"
	"fmt"
	"time"
)

type Action string

const (
	ActionStart   Action = "start"
	ActionDie     Action = "die"
	ActionKill    Action = "kill"
	ActionOOM     Action = "oom"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionPause   Action = "pause"
	ActionUnpause Action = "unpause"
	ActionDestroy Action = "destroy"
)

var ErrUnknownAction = errors.New("unknown action")

// AllActions lists every action the watcher understands, in classification precedence order.
var AllActions = []Action{
	ActionDie,
	ActionKill,
	ActionOOM,
	ActionStop,
	ActionRestart,
	ActionStart,
	ActionPause,
	ActionUnpause,
	ActionDestroy,
}

func (a Action) IsValid() bool {
	switch a {
	case ActionStart,
		ActionDie,
		ActionKill,
		ActionOOM,
		ActionStop,
		ActionRestart,
		ActionPause,
		ActionUnpause,
		ActionDestroy:
		return true
	}
	return false
}

// WantsLogs reports whether a notification for this action carries a log excerpt.
func (a Action) WantsLogs() bool {
	return a == ActionDie || a == ActionKill || a == ActionOOM
}

// Precedence ranks actions for tie-breaking; lower wins.
func (a Action) Precedence() int {
	for i, other := range AllActions {
		if other == a {
			return i
		}
	}
	return len(AllActions)
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// ContainerRef identifies a container. Identity is the ID; the rest is descriptive.
type ContainerRef struct {
	ID             string
	Name           string
	Image          string
	ComposeProject string
	ComposeService string
	Labels         map[string]string
}

func (c ContainerRef) IsCompose() bool {
	return c.ComposeProject != "" && c.ComposeService != ""
}

// DisplayName is "project/service" for compose containers and the container name otherwise.
func (c ContainerRef) DisplayName() string {
	if c.IsCompose() {
		return c.ComposeProject + "/" + c.ComposeService
	}
	if c.Name != "" {
		return c.Name
	}
	return ShortID(c.ID)
}

// RawEvent is a single lifecycle event as emitted by the runtime, already narrowed to a known action.
type RawEvent struct {
	Container ContainerRef
	Action    Action
	ExitCode  *int
	Signal    string
	Time      time.Time

	// Restarting is set on a die when the daemon was already bringing the container back.
	Restarting bool
}

// Key identifies an event occurrence for de-duplication across stream reconnects.
func (e RawEvent) Key() string {
	return fmt.Sprintf("%s|%s|%d", e.Container.ID, e.Action, e.Time.UnixNano())
}

func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func IntPtr(v int) *int {
	return &v
}
