package bridge

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/solana"
)

func dataLine(b []byte) string {
	return "Program data: " + base64.StdEncoding.EncodeToString(b)
}

func TestParseEvents_AttributesDataToExecutingProgram(t *testing.T) {
	bridgeID := programID.String()
	other := solana.TokenProgramID.String()
	ev := NewRequestEvent{Mint: solana.PublicKey{1}, UserTokenAccount: solana.PublicKey{2}, RequestID: "r-1", Amount: 1}

	logs := []string{
		"Program " + bridgeID + " invoke [1]",
		"Program " + other + " invoke [2]",
		dataLine(ev.Encode()),
		"Program " + other + " success",
		dataLine(ev.Encode()),
		"Program " + bridgeID + " success",
		dataLine(ev.Encode()),
	}

	events, err := ParseEvents(programID, logs)
	require.NoError(t, err)
	require.Len(t, events, 1, "only data logged while the bridge program is on top of the stack counts")
	assert.Equal(t, ev, events[0])
}

func TestParseEvents_SkipsUnknownDiscriminator(t *testing.T) {
	logs := []string{
		"Program " + programID.String() + " invoke [1]",
		dataLine([]byte("12345678payload")),
		"Program " + programID.String() + " success",
	}
	events, err := ParseEvents(programID, logs)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseEvents_BadBase64(t *testing.T) {
	logs := []string{
		"Program " + programID.String() + " invoke [1]",
		"Program data: !!!",
	}
	_, err := ParseEvents(programID, logs)
	assert.Error(t, err)
}

func TestDecodeEvent_NewRequestWithoutAmount(t *testing.T) {
	payload := borsh.NewWriter(0).
		Raw(newRequestDiscriminator).
		PublicKey(solana.PublicKey{1}).
		PublicKey(solana.PublicKey{2}).
		String("legacy").
		Bytes()

	ev, err := DecodeEvent(payload)
	require.NoError(t, err)
	req, ok := ev.(NewRequestEvent)
	require.True(t, ok)
	assert.Equal(t, "legacy", req.RequestID)
	assert.Zero(t, req.Amount)
}

func TestErrorByCode(t *testing.T) {
	for _, e := range allErrors {
		assert.Same(t, e, ErrorByCode(e.Code))
		assert.GreaterOrEqual(t, e.Code, uint32(ErrorCodeOffset))
	}
	assert.Nil(t, ErrorByCode(1))
}
