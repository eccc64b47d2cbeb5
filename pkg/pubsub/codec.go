package pubsub

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aistatsd/aistatsd"
)

const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

func validEncoding(encoding string) bool {
	return encoding == EncodingJSON || encoding == EncodingMsgpack
}

// Encode serializes payload for publishing.
func Encode(encoding string, payload *aistatsd.FlushPayload) ([]byte, error) {
	switch encoding {
	case EncodingJSON:
		return payload.Encode()
	case EncodingMsgpack:
		return msgpack.Marshal(payload)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

// Decode parses a published payload.
func Decode(encoding string, b []byte) (*aistatsd.FlushPayload, error) {
	switch encoding {
	case EncodingJSON:
		return aistatsd.UnmarshalFlushPayload(b)
	case EncodingMsgpack:
		fp := &aistatsd.FlushPayload{}
		if err := msgpack.Unmarshal(b, fp); err != nil {
			return nil, err
		}
		return fp, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}
