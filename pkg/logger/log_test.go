package logger_test

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/hbomb79/synthmocap/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Logger_FiltersBelowMinimumLevel(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true

	var out bytes.Buffer
	logger.SetOutput(&out)
	logger.SetMinLoggingLevel(logger.INFO.Level())
	t.Cleanup(func() {
		color.NoColor = noColor
		logger.SetOutput(color.Output)
		logger.SetMinLoggingLevel(logger.DEFAULT_MIN_STAT.Level())
	})

	log := logger.Get("Test")
	log.Emit(logger.DEBUG, "hidden %d\n", 1)
	log.Emit(logger.WARNING, "shown %d\n", 2)

	require.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[Test]")
	assert.Contains(t, out.String(), "(!) shown 2\n")

	out.Reset()
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
	log.Emit(logger.VERBOSE, "now shown\n")
	assert.Contains(t, out.String(), "(V) now shown\n")
}
