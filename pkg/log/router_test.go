package log_test

import (
	"errors"
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/log"
	"github.com/arnavsurve/crawlstep/pkg/security"
	"github.com/arnavsurve/crawlstep/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	events []*log.LogEvent
	closed bool
}

func (m *memorySink) Write(event *log.LogEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func TestRouter_RedactsAndFilters(t *testing.T) {
	sink := &memorySink{}
	router := log.NewRouter(sink)
	router.SetRedactor(security.NewRedactor(map[string]any{"#password": "hunter2"}))

	logger := log.New(router)
	logger.Debug().Msg("dropped below min level")
	logger.Info().Str("action", "TypeText").Msg("typing hunter2")
	logger.Error().Err(errors.New("bad hunter2")).Msg("failed")

	require.Len(t, sink.events, 2)
	assert.Equal(t, types.InfoLevel, sink.events[0].Level)
	assert.Equal(t, "typing ********", sink.events[0].Message)
	assert.Equal(t, "TypeText", sink.events[0].Fields["action"])
	assert.Equal(t, types.ErrorLevel, sink.events[1].Level)
	assert.Equal(t, "bad ********", sink.events[1].Fields["error"])
}

func TestRouter_DebugLevelAndClose(t *testing.T) {
	sink := &memorySink{}
	router := log.NewRouter()
	router.AddSink(sink)
	router.SetMinLevel(types.DebugLevel)

	log.New(router).Debug().Msg("visible")

	require.Len(t, sink.events, 1)
	require.NoError(t, router.Close())
	assert.True(t, sink.closed)
}
