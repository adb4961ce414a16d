package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/internal/logging"
)

func TestNew_DevMode(t *testing.T) {
	log, err := logging.New(logging.ModeDev, "debug")
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Infow("dev logger ready", "mode", "dev")
}

func TestNew_ProdMode(t *testing.T) {
	log, err := logging.New(logging.ModeProd, "warn")
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Warnw("prod logger ready", "mode", "prod")
}

func TestNew_UnrecognizedLevelFallsBackToDefault(t *testing.T) {
	log, err := logging.New(logging.ModeProd, "not-a-level")
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNoop_NeverPanics(t *testing.T) {
	log := logging.Noop()
	assert.NotPanics(t, func() {
		log.Infow("discarded", "key", "value")
	})
}
