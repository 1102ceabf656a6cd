package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestGetForComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("info", &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	l := GetForComponent("reward_recycler")
	l.Info().Str("amount", "24").Msg("forwarded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reward_recycler", entry["component"])
	assert.Equal(t, "24", entry["amount"])
	assert.Equal(t, "forwarded", entry["message"])
}
