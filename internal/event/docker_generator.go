package event

import (
	"context"
	"errors"
	"time"

	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/rs/zerolog"
)

const (
	bufferSize     = 100
	inspectTimeout = time.Second
)

type DockerGenerator struct {
	logger zerolog.Logger
	cli    dockerClient
}

func NewDockerGenerator(cli dockerClient, logger zerolog.Logger) *DockerGenerator {
	return &DockerGenerator{
		logger: logger.With().Str("component", "docker_generator").Logger(),
		cli:    cli,
	}
}

// ListRunning returns the containers currently running, used to seed state on (re)connect.
func (dw *DockerGenerator) ListRunning(ctx context.Context) ([]domain.ContainerRef, error) {
	containers, err := dw.cli.ContainerList(ctx, container.ListOptions{All: false})
	if err != nil {
		return nil, err
	}
	refs := make([]domain.ContainerRef, 0, len(containers))
	for _, c := range containers {
		refs = append(refs, fromContainerSummary(c))
	}
	return refs, nil
}

// Subscribe opens one event subscription. A zero since subscribes from now.
// The returned channel is closed when the stream ends for any reason; the caller resubscribes.
func (dw *DockerGenerator) Subscribe(ctx context.Context, since time.Time) (<-chan domain.RawEvent, error) {
	if _, err := dw.cli.Ping(ctx); err != nil {
		return nil, &ConnectError{Err: err}
	}

	filterArgs := filters.NewArgs()
	filterArgs.Add("type", string(events.ContainerEventType))
	for _, a := range domain.AllActions {
		filterArgs.Add("event", string(a))
	}

	options := events.ListOptions{Filters: filterArgs}
	if !since.IsZero() {
		options.Since = formatSince(since)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	eventCh, errCh := dw.cli.Events(streamCtx, options)

	out := make(chan domain.RawEvent, bufferSize)
	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				dw.logger.Info().Msg("Docker watcher cancelled by context")
				return
			case err, ok := <-errCh:
				if !ok {
					dw.logger.Warn().Msg("Docker events error channel closed")
					return
				}
				if err != nil && !errors.Is(err, context.Canceled) {
					dw.logger.Error().Err(err).Msg("Error from Docker events stream")
				}
				return
			case msg, ok := <-eventCh:
				if !ok {
					dw.logger.Info().Msg("Docker events channel closed")
					return
				}

				event, convErr := fromEventsMessage(msg, dw.logger)
				if convErr != nil {
					var unsupported *UnsupportedEventTypeError
					if errors.As(convErr, &unsupported) {
						dw.logger.Debug().Err(convErr).Msg("Skipping docker event")
					} else {
						dw.logger.Error().Err(convErr).Msg("converting docker event message to container event")
					}
					continue
				}

				if event.Action == domain.ActionDie {
					event.Restarting = dw.restartPending(ctx, event)
				}

				dw.logger.Debug().
					Str("container_id", domain.ShortID(event.Container.ID)).
					Str("action", string(event.Action)).
					Bool("restarting", event.Restarting).
					Msg("Received Docker event")
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// restartPending reports whether the daemon is bringing the container back after the exit in e:
// either its restart policy is pending or it has been started again since.
func (dw *DockerGenerator) restartPending(ctx context.Context, e domain.RawEvent) bool {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	info, err := dw.cli.ContainerInspect(ctx, e.Container.ID)
	if err != nil {
		dw.logger.Debug().Err(err).Str("container_id", domain.ShortID(e.Container.ID)).Msg("Could not inspect container after exit")
		return false
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return false
	}
	st := info.State
	if st.Restarting {
		return true
	}
	if !st.Running {
		return false
	}
	started, err := time.Parse(time.RFC3339Nano, st.StartedAt)
	return err == nil && started.After(e.Time)
}
