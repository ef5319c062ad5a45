package network

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// maxFrameSize bounds a single RPC frame. The payload carried inside is
// opaque to this package (spec.md §1: no payload validation), so this is
// purely a resource-exhaustion guard, not a protocol limit.
const maxFrameSize = 1 << 20

// writeFrame varint-prefixes the length of data and snappy-compresses the
// body, the same framing idiom as beacon-chain/p2p/encoder's varint+snappy
// SSZ codec, generalized here to opaque bytes since application payload
// decoding is out of scope.
func writeFrame(w io.Writer, data []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(data)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return errors.Wrap(err, "could not write frame length")
	}
	sw := snappy.NewBufferedWriter(w)
	if _, err := sw.Write(data); err != nil {
		return errors.Wrap(err, "could not write frame body")
	}
	return sw.Close()
}

func readFrame(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	length, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(err, "could not read frame length")
	}
	if length > maxFrameSize {
		return nil, errors.Errorf("frame of %d bytes exceeds maximum of %d", length, maxFrameSize)
	}
	sr := snappy.NewReader(br)
	out := make([]byte, length)
	if _, err := io.ReadFull(sr, out); err != nil {
		return nil, errors.Wrap(err, "could not read frame body")
	}
	return out, nil
}

// rpcEvent wire tags.
const (
	tagRequest byte = iota
	tagResponseOk
	tagResponseInvalidRequest
	tagResponseServerError
	tagResponseUnknown
	tagError
)

func tagForKind(k RPCEventKind) (byte, error) {
	switch k {
	case RPCRequest:
		return tagRequest, nil
	case RPCResponseOk:
		return tagResponseOk, nil
	case RPCResponseInvalidRequest:
		return tagResponseInvalidRequest, nil
	case RPCResponseServerError:
		return tagResponseServerError, nil
	case RPCResponseUnknown:
		return tagResponseUnknown, nil
	case RPCError:
		return tagError, nil
	default:
		return 0, errors.Errorf("unknown RPC event kind %d", k)
	}
}

func kindForTag(tag byte) (RPCEventKind, error) {
	switch tag {
	case tagRequest:
		return RPCRequest, nil
	case tagResponseOk:
		return RPCResponseOk, nil
	case tagResponseInvalidRequest:
		return RPCResponseInvalidRequest, nil
	case tagResponseServerError:
		return RPCResponseServerError, nil
	case tagResponseUnknown:
		return RPCResponseUnknown, nil
	case tagError:
		return RPCError, nil
	default:
		return 0, errors.Errorf("unknown RPC frame tag %d", tag)
	}
}

// encodeRPCEvent serializes e as [tag:1][id:8][payload-or-reason].
func encodeRPCEvent(e RPCEvent) ([]byte, error) {
	tag, err := tagForKind(e.Kind)
	if err != nil {
		return nil, err
	}
	body := e.Payload
	if e.Kind.IsResponseError() || e.Kind == RPCError {
		body = []byte(e.Reason)
	}
	buf := make([]byte, 0, 9+len(body))
	buf = append(buf, tag)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], e.ID)
	buf = append(buf, idBuf[:]...)
	buf = append(buf, body...)
	return buf, nil
}

func decodeRPCEvent(data []byte) (RPCEvent, error) {
	if len(data) < 9 {
		return RPCEvent{}, errors.New("rpc frame shorter than the fixed tag+id header")
	}
	kind, err := kindForTag(data[0])
	if err != nil {
		return RPCEvent{}, err
	}
	id := binary.BigEndian.Uint64(data[1:9])
	rest := data[9:]
	event := RPCEvent{Kind: kind, ID: id}
	if kind.IsResponseError() || kind == RPCError {
		event.Reason = string(rest)
	} else {
		event.Payload = rest
	}
	return event, nil
}
