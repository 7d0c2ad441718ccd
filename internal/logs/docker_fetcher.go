package logs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/auto-dns/harbinger/internal/domain"
	"github.com/auto-dns/harbinger/internal/util"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
)

const (
	MinTimeout = time.Second
	MaxTimeout = 3 * time.Second

	maxLogBytes    = 1 << 20
	lineTimeFormat = "2006-01-02 15:04:05"
)

type DockerFetcher struct {
	cli     dockerClient
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDockerFetcher returns a fetcher whose per-call timeout is clamped to [MinTimeout, MaxTimeout].
func NewDockerFetcher(cli dockerClient, timeout time.Duration, logger zerolog.Logger) *DockerFetcher {
	return &DockerFetcher{
		cli:     cli,
		timeout: min(max(timeout, MinTimeout), MaxTimeout),
		logger:  logger.With().Str("component", "log_fetcher").Logger(),
	}
}

func (f *DockerFetcher) Timeout() time.Duration {
	return f.timeout
}

// FetchTail returns up to maxLines of the container's most recent output, oldest first.
func (f *DockerFetcher) FetchTail(ctx context.Context, ref domain.ContainerRef, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	rc, err := f.cli.ContainerLogs(ctx, ref.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       strconv.Itoa(maxLines),
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, &FetchError{ContainerID: ref.ID, Err: ErrContainerGone}
		}
		return nil, &FetchError{ContainerID: ref.ID, Err: err}
	}
	defer rc.Close()

	text, truncated, err := readTail(rc, maxLogBytes)
	if err != nil {
		return nil, &FetchError{ContainerID: ref.ID, Err: err}
	}
	if truncated {
		f.logger.Debug().
			Str("container_id", domain.ShortID(ref.ID)).
			Int("limit_bytes", maxLogBytes).
			Msg("Log output exceeded read limit, keeping newest bytes")
	}

	lines := util.Filter(strings.Split(text, "\n"), func(l string) bool {
		return strings.TrimSpace(l) != ""
	})
	lines = util.Last(lines, maxLines)

	f.logger.Debug().
		Str("container_id", domain.ShortID(ref.ID)).
		Int("lines", len(lines)).
		Msg("Fetched container logs")
	return util.Map(lines, FormatLine), nil
}

// readTail strips the stream multiplexing headers and keeps the newest limit bytes of output.
// TTY containers produce raw output, which is copied as is.
func readTail(r io.Reader, limit int) (string, bool, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(8)

	tw := &tailWriter{limit: limit}
	var err error
	if isMultiplexed(head) {
		_, err = stdcopy.StdCopy(tw, tw, br)
	} else {
		_, err = io.Copy(tw, br)
	}
	if err != nil {
		return "", false, fmt.Errorf("read log stream: %w", err)
	}

	text := string(tw.buf)
	if tw.truncated {
		// The first line was cut.
		if _, rest, ok := strings.Cut(text, "\n"); ok {
			text = rest
		}
	}
	return text, tw.truncated, nil
}

// tailWriter retains the last limit bytes written to it.
type tailWriter struct {
	buf       []byte
	limit     int
	truncated bool
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
		w.truncated = true
	}
	return len(p), nil
}

func isMultiplexed(raw []byte) bool {
	if len(raw) < 8 {
		return false
	}
	switch stdcopy.StdType(raw[0]) {
	case stdcopy.Stdin, stdcopy.Stdout, stdcopy.Stderr, stdcopy.Systemerr:
	default:
		return false
	}
	return raw[1] == 0 && raw[2] == 0 && raw[3] == 0
}

// FormatLine rewrites "<RFC3339Nano> message" as "YYYY-MM-DD HH:MM:SS | message".
// Lines without a parseable timestamp are returned unchanged.
func FormatLine(line string) string {
	line = strings.TrimRight(line, "\r")
	ts, msg, ok := strings.Cut(line, " ")
	if !ok {
		return line
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return line
	}
	return t.UTC().Format(lineTimeFormat) + " | " + msg
}
