package pipeline

import (
	"context"

	"github.com/auto-dns/harbinger/internal/delivery"
	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/auto-dns/harbinger/internal/format"
	"github.com/auto-dns/harbinger/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	resultDelivered        = "delivered"
	resultTransientFailure = "transient_failure"
	resultPermanentFailure = "permanent_failure"
)

type logFetcher interface {
	FetchTail(ctx context.Context, ref domain.ContainerRef, maxLines int) ([]string, error)
}

type formatter interface {
	Format(intent domain.NotificationIntent) format.Payload
}

type deliverer interface {
	Deliver(ctx context.Context, p format.Payload) delivery.Result
}

// Notifier runs the post-classification stages for a job: logs, format, deliver.
type Notifier struct {
	fetcher   logFetcher
	formatter formatter
	deliverer deliverer
	logLines  int
	logger    zerolog.Logger
}

func NewNotifier(fetcher logFetcher, f formatter, d deliverer, logLines int, logger zerolog.Logger) *Notifier {
	return &Notifier{
		fetcher:   fetcher,
		formatter: f,
		deliverer: d,
		logLines:  logLines,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *Notifier) Process(ctx context.Context, job Job) delivery.Result {
	logger := n.logger.With().
		Str("notification_id", job.ID).
		Str("container_id", domain.ShortID(job.Event.Container.ID)).
		Str("container_name", job.Intent.Container.DisplayName()).
		Str("action", string(job.Event.Action)).
		Logger()

	intent := job.Intent
	if job.FetchLogs && n.logLines > 0 {
		lines, err := n.fetcher.FetchTail(ctx, intent.Container, n.logLines)
		if err != nil {
			metrics.RecordLogFetchFailure()
			logger.Debug().Err(err).Msg("Sending notification without log excerpt")
		} else {
			intent.LogsExcerpt = lines
		}
	}

	result := n.deliverer.Deliver(ctx, n.formatter.Format(intent))
	switch {
	case result.Delivered:
		metrics.RecordNotification(resultDelivered)
		logger.Info().Str("title", intent.Title).Int("attempts", result.Attempts).Msg("Notification sent")
	case delivery.IsPermanent(result.Err):
		metrics.RecordNotification(resultPermanentFailure)
	default:
		metrics.RecordNotification(resultTransientFailure)
	}
	return result
}
