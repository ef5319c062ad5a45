package network

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("a request payload that is not empty")

	require.NoError(t, writeFrame(&buf, payload))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteReadFrame_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, nil))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(lenBuf, maxFrameSize+1)
	buf.Write(lenBuf[:n])

	_, err := readFrame(&buf)
	assert.Error(t, err)
}

func TestEncodeDecodeRPCEvent_Request(t *testing.T) {
	event := NewRPCRequest([]byte("hello"))

	raw, err := encodeRPCEvent(event)
	require.NoError(t, err)

	decoded, err := decodeRPCEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
}

func TestEncodeDecodeRPCEvent_ErrorCarriesReason(t *testing.T) {
	event := RPCEvent{Kind: RPCResponseServerError, ID: 7, Reason: "boom"}

	raw, err := encodeRPCEvent(event)
	require.NoError(t, err)

	decoded, err := decodeRPCEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, event.Reason, decoded.Reason)
	assert.Equal(t, event.Kind, decoded.Kind)
	assert.True(t, decoded.Kind.IsResponseError())
}

func TestDecodeRPCEvent_RejectsShortFrame(t *testing.T) {
	_, err := decodeRPCEvent([]byte{0x00})
	assert.Error(t, err)
}
