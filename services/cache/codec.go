package cachesvc

import (
	"bytes"
	"io/ioutil"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/trezcool/soko/core/analytics"
)

// payload flags, stored as the first byte of every encoded value
const (
	flagRaw byte = iota
	flagLZ4
)

// MsgpackCodec encodes values with msgpack and lz4-compresses payloads larger than Threshold bytes.
type MsgpackCodec struct {
	Threshold int
}

var _ analytics.Codec = (*MsgpackCodec)(nil)

func NewMsgpackCodec(threshold int) *MsgpackCodec {
	return &MsgpackCodec{Threshold: threshold}
}

func (c MsgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json") // keep the JSON field names and omitempty rules
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "msgpack encoding")
	}
	data := buf.Bytes()

	if c.Threshold <= 0 || len(data) <= c.Threshold {
		return append([]byte{flagRaw}, data...), nil
	}

	var out bytes.Buffer
	out.WriteByte(flagLZ4)
	zw := lz4.NewWriter(&out)
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "lz4 compression")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "lz4 compression")
	}
	return out.Bytes(), nil
}

func (c MsgpackCodec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}

	payload := data[1:]
	switch data[0] {
	case flagRaw:
	case flagLZ4:
		var err error
		payload, err = ioutil.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return errors.Wrap(err, "lz4 decompression")
		}
	default:
		return errors.Errorf("unknown payload flag %d", data[0])
	}

	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("json")
	return errors.Wrap(dec.Decode(v), "msgpack decoding")
}

// NewCodec returns the codec named by the cache.codec setting.
func NewCodec(name string, threshold int) analytics.Codec {
	if name == "json" {
		return analytics.JSONCodec{}
	}
	return NewMsgpackCodec(threshold)
}
