package logs

import (
	"context"
	"io"

	"github.com/docker/docker/api/types/container"
)

type dockerClient interface {
	ContainerLogs(ctx context.Context, container string, options container.LogsOptions) (io.ReadCloser, error)
}
