package commands

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/dispatch/internal/config"
	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/service"
)

func newTestReloader(t *testing.T, digest config.DigestConfig, verbose bool) *reloader {
	t.Helper()
	require.NoError(t, logging.Init(logging.Config{Level: "info", Output: io.Discard}))
	r := newReloader(context.Background(), &backend{svc: service.New()}, digest, verbose)
	t.Cleanup(r.stop)
	return r
}

func TestReloaderKeepsVerboseLevel(t *testing.T) {
	edit := &config.Config{Logging: config.LoggingConfig{Level: "warn"}}

	r := newTestReloader(t, config.DigestConfig{}, true)
	r.apply(edit)
	assert.Equal(t, "debug", logging.Get().Level().String(), "--verbose should survive a reload")

	r = newTestReloader(t, config.DigestConfig{}, false)
	r.apply(edit)
	assert.Equal(t, "warn", logging.Get().Level().String())
}

func TestReloaderStartsDigestOnFirstEnable(t *testing.T) {
	r := newTestReloader(t, config.DigestConfig{Horizon: 24 * time.Hour}, false)
	assert.False(t, r.running())

	next := &config.Config{
		Logging: config.LoggingConfig{Level: "info"},
		Digest: config.DigestConfig{
			Cron:      "0 8 * * *",
			Assignees: []int64{1},
			Horizon:   24 * time.Hour,
			Timezone:  "UTC",
		},
	}
	r.apply(next)
	require.True(t, r.running(), "enabling the digest in the file should start it")
	assert.Equal(t, 8, r.nextRun().In(time.UTC).Hour())

	moved := *next
	moved.Digest.Cron = "30 9 * * *"
	r.apply(&moved)
	require.True(t, r.running())
	run := r.nextRun().In(time.UTC)
	assert.Equal(t, 9, run.Hour())
	assert.Equal(t, 30, run.Minute())

	off := moved
	off.Digest.Cron = ""
	r.apply(&off)
	assert.False(t, r.running())
}
