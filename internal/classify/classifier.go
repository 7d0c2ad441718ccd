// Package classify maps runtime events to notification intents. It performs no I/O.
package classify

import (
	"fmt"
	"strconv"

	"github.com/auto-dns/harbinger/internal/domain"
)

const (
	FieldContainer      = "Container"
	FieldImage          = "Image"
	FieldHost           = "Host"
	FieldEnvironment    = "Environment"
	FieldExitCode       = "Exit Code"
	FieldSignal         = "Signal"
	FieldContext        = "Context"
	FieldComposeProject = "Compose Project"
	FieldComposeService = "Compose Service"

	restartContext = "restart in progress"
	unknownValue   = "unknown"
)

type Classifier struct {
	Host string
	Env  string
}

func New(host, env string) *Classifier {
	return &Classifier{Host: host, Env: env}
}

// Classify builds the notification intent for e. prior is the container's state before e was
// observed; its metadata fills in anything the event lacks.
func (c *Classifier) Classify(e domain.RawEvent, prior domain.ContainerState) domain.NotificationIntent {
	ref := mergedRef(e.Container, prior.Container)
	severity, title := rule(e)

	fields := []domain.Field{
		{Label: FieldContainer, Value: orUnknown(ref.DisplayName())},
		{Label: FieldImage, Value: orUnknown(ref.Image)},
		{Label: FieldHost, Value: c.Host},
		{Label: FieldEnvironment, Value: c.Env},
	}

	switch e.Action {
	case domain.ActionDie:
		code := unknownValue
		if e.ExitCode != nil {
			code = strconv.Itoa(*e.ExitCode)
		}
		fields = append(fields, domain.Field{Label: FieldExitCode, Value: code})
	case domain.ActionKill:
		if e.Signal != "" {
			fields = append(fields, domain.Field{Label: FieldSignal, Value: e.Signal})
		}
	case domain.ActionOOM:
		if e.ExitCode != nil {
			fields = append(fields, domain.Field{Label: FieldExitCode, Value: strconv.Itoa(*e.ExitCode)})
		}
	}

	if (e.Action == domain.ActionDie || e.Action == domain.ActionKill) && (e.Restarting || prior.Status == domain.StatusRestarting) {
		fields = append(fields, domain.Field{Label: FieldContext, Value: restartContext})
	}

	if ref.ComposeProject != "" {
		fields = append(fields, domain.Field{Label: FieldComposeProject, Value: ref.ComposeProject})
	}
	if ref.ComposeService != "" {
		fields = append(fields, domain.Field{Label: FieldComposeService, Value: ref.ComposeService})
	}

	return domain.NotificationIntent{
		Severity:  severity,
		Title:     title,
		Fields:    fields,
		Container: ref,
		Action:    e.Action,
		Time:      e.Time,
	}
}

// rule is the canonical action to severity and title table.
func rule(e domain.RawEvent) (domain.Severity, string) {
	switch e.Action {
	case domain.ActionStart:
		return domain.SeverityInfo, "Container Started"
	case domain.ActionDie:
		switch {
		case e.ExitCode == nil:
			return domain.SeverityWarning, "Container Exited (code unknown)"
		case *e.ExitCode == 0:
			return domain.SeverityInfo, "Container Exited Cleanly"
		default:
			return domain.SeverityError, fmt.Sprintf("Container Exited With Error (code %d)", *e.ExitCode)
		}
	case domain.ActionKill:
		return domain.SeverityWarning, "Container Killed"
	case domain.ActionOOM:
		return domain.SeverityFatal, "Container Out Of Memory"
	case domain.ActionStop:
		return domain.SeverityInfo, "Container Stopped"
	case domain.ActionRestart:
		return domain.SeverityInfo, "Container Restarting"
	case domain.ActionPause:
		return domain.SeverityInfo, "Container Paused"
	case domain.ActionUnpause:
		return domain.SeverityInfo, "Container Unpaused"
	case domain.ActionDestroy:
		return domain.SeverityInfo, "Container Removed"
	default:
		return domain.SeverityWarning, "Container Event: " + string(e.Action)
	}
}

func mergedRef(event, known domain.ContainerRef) domain.ContainerRef {
	out := event
	if out.Name == "" {
		out.Name = known.Name
	}
	if out.Image == "" {
		out.Image = known.Image
	}
	if out.ComposeProject == "" {
		out.ComposeProject = known.ComposeProject
	}
	if out.ComposeService == "" {
		out.ComposeService = known.ComposeService
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}
