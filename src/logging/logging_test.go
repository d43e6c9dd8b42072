package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestForBotTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "debug", false)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l := ForBot("greeter", "hello")
	l.Info().Msg("Successfully stopped")

	out := buf.String()
	assert.Contains(t, out, `"bot":"greeter"`)
	assert.Contains(t, out, `"class":"hello"`)
	assert.Contains(t, out, "Successfully stopped")
}

func TestSetupFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	SetupWriter(&buf, "chatty", false)

	l := ForComponent("waiter")
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"component":"waiter"`)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsRateLimit(errors.New("graphql: http 429: slow down")))
	assert.False(t, IsRateLimit(nil))

	assert.True(t, IsTransient(fmt.Errorf("poll: %w", context.DeadlineExceeded)))
	assert.True(t, IsTransient(errors.New("read: connection reset by peer")))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(errors.New("graphql: unsupported variable")))
}
