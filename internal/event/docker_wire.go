package event

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/rs/zerolog"
)

const (
	composeProjectLabel    = "com.docker.compose.project"
	composeWorkingDirLabel = "com.docker.compose.project.working_dir"
	composeServiceLabel    = "com.docker.compose.service"

	attrName     = "name"
	attrImage    = "image"
	attrExitCode = "exitCode"
	attrSignal   = "signal"
)

// ComposeIdentity extracts the compose project and service from container labels.
// The project falls back to the last element of the compose working directory.
func ComposeIdentity(labels map[string]string) (project, service string) {
	project = strings.TrimSpace(labels[composeProjectLabel])
	if project == "" {
		if dir := strings.TrimRight(labels[composeWorkingDirLabel], "/"); dir != "" {
			project = path.Base(dir)
		}
	}
	service = strings.TrimSpace(labels[composeServiceLabel])
	return project, service
}

func containerRef(id, name, image string, labels map[string]string) domain.ContainerRef {
	project, service := ComposeIdentity(labels)
	return domain.ContainerRef{
		ID:             id,
		Name:           strings.TrimPrefix(name, "/"),
		Image:          image,
		ComposeProject: project,
		ComposeService: service,
		Labels:         labels,
	}
}

func fromContainerSummary(c container.Summary) domain.ContainerRef {
	name := ""
	if len(c.Names) > 0 {
		name = c.Names[0]
	}
	return containerRef(c.ID, name, c.Image, c.Labels)
}

// fromEventsMessage converts a daemon event. A malformed exit code is logged and left unset.
func fromEventsMessage(msg events.Message, logger zerolog.Logger) (domain.RawEvent, error) {
	action, err := domain.ParseAction(string(msg.Action))
	if err != nil {
		return domain.RawEvent{}, NewUnsupportedEventTypeError(string(msg.Action))
	}
	if msg.Actor.ID == "" {
		return domain.RawEvent{}, fmt.Errorf("event %q without actor id", msg.Action)
	}

	attrs := msg.Actor.Attributes
	ev := domain.RawEvent{
		Container: containerRef(msg.Actor.ID, attrs[attrName], attrs[attrImage], attrs),
		Action:    action,
		Time:      eventTime(msg),
	}
	if raw, ok := attrs[attrExitCode]; ok {
		if code, convErr := strconv.Atoi(strings.TrimSpace(raw)); convErr == nil {
			ev.ExitCode = &code
		} else {
			logger.Debug().
				Str("container_id", domain.ShortID(msg.Actor.ID)).
				Str("exit_code", raw).
				Msg("Ignoring unparseable exit code")
		}
	}
	if action == domain.ActionKill {
		ev.Signal = attrs[attrSignal]
	}
	return ev, nil
}

func eventTime(msg events.Message) time.Time {
	if msg.TimeNano != 0 {
		return time.Unix(0, msg.TimeNano)
	}
	return time.Unix(msg.Time, 0)
}

// formatSince renders t the way the events endpoint expects: seconds.nanoseconds.
func formatSince(t time.Time) string {
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}
