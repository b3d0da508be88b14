package cacheinfra

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names accepted in configuration.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec serializes cache payloads. Every codec owns a one byte tag that is
// written in front of the payload, so a reader always decodes a value with the
// codec that wrote it, whatever the current configuration says.
type Codec interface {
	Name() string
	Tag() byte
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return CodecJSON }
func (jsonCodec) Tag() byte                          { return 'j' }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return CodecMsgpack }
func (msgpackCodec) Tag() byte                          { return 'm' }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var codecs = map[byte]Codec{
	jsonCodec{}.Tag():    jsonCodec{},
	msgpackCodec{}.Tag(): msgpackCodec{},
}

// JSONCodec returns the default codec.
func JSONCodec() Codec { return jsonCodec{} }

// MsgpackCodec returns the msgpack codec.
func MsgpackCodec() Codec { return msgpackCodec{} }

// CodecByName resolves a configured codec name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return jsonCodec{}, nil
	case CodecMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, &ConfigError{Field: "Codec", Message: fmt.Sprintf("unknown codec %q", name)}
	}
}

// Encode serializes v with codec and prefixes the codec tag.
func Encode(codec Codec, v any) ([]byte, error) {
	payload, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, codec.Tag())
	return append(out, payload...), nil
}

// Decode reads a tagged payload into dest. A nil dest only validates the tag.
func Decode(data []byte, dest any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrCorruptValue)
	}
	codec, ok := codecs[data[0]]
	if !ok {
		return fmt.Errorf("%w: unknown codec tag %q", ErrCorruptValue, data[0])
	}
	if dest == nil {
		return nil
	}
	if err := codec.Unmarshal(data[1:], dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}
	return nil
}

// Value is a raw tagged payload as read from the store. A nil Value means the
// key was absent.
type Value []byte

// Found reports whether the key existed.
func (v Value) Found() bool { return v != nil }

// Decode unmarshals the payload into dest.
func (v Value) Decode(dest any) error { return Decode(v, dest) }
