package shared

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/relex/frame-agent/base"
	"github.com/vmihailenco/msgpack/v4"
)

// Encoding is the serialization format of results sent to message buses
type Encoding string

// Supported encodings
const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding validates an encoding; empty means JSON
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported encoding '%s'", name)
	}
}

// EncodeResult serializes a result
func EncodeResult(encoding Encoding, result *base.Result) ([]byte, error) {
	switch encoding {
	case "", EncodingJSON:
		return json.Marshal(result)
	case EncodingMsgpack:
		return msgpack.Marshal(result)
	default:
		return nil, fmt.Errorf("unsupported encoding '%s'", encoding)
	}
}

// DecodeResult deserializes a result, for tests and tools
func DecodeResult(encoding Encoding, data []byte) (*base.Result, error) {
	result := &base.Result{}
	var err error
	switch encoding {
	case "", EncodingJSON:
		err = json.Unmarshal(data, result)
	case EncodingMsgpack:
		err = msgpack.Unmarshal(data, result)
	default:
		err = fmt.Errorf("unsupported encoding '%s'", encoding)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
