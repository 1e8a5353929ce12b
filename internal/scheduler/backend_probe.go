package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// BackendProbeJob checks that the remote quantum backend answers its health
// endpoint. The last observed state is exposed for the system health report.
type BackendProbeJob struct {
	log     zerolog.Logger
	url     string
	client  *http.Client
	healthy atomic.Bool
}

// NewBackendProbeJob creates a probe for the remote backend at baseURL.
func NewBackendProbeJob(baseURL string, log zerolog.Logger) *BackendProbeJob {
	return &BackendProbeJob{
		log:    log.With().Str("job", "backend_probe").Logger(),
		url:    baseURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the job name
func (j *BackendProbeJob) Name() string {
	return "backend_probe"
}

// Healthy reports the result of the most recent probe.
func (j *BackendProbeJob) Healthy() bool {
	return j.healthy.Load()
}

// Run executes the probe
func (j *BackendProbeJob) Run() error {
	if j.url == "" {
		j.log.Debug().Msg("No remote backend configured, skipping probe")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := j.client.Do(req)
	if err != nil {
		j.healthy.Store(false)
		j.log.Warn().Err(err).Str("url", j.url).Msg("Remote backend unreachable")
		return nil // transient; do not fail the job
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	j.healthy.Store(ok)
	if !ok {
		j.log.Warn().Int("status", resp.StatusCode).Str("url", j.url).Msg("Remote backend unhealthy")
		return fmt.Errorf("remote backend returned status %d", resp.StatusCode)
	}

	j.log.Debug().Str("url", j.url).Msg("Remote backend healthy")
	return nil
}
