// Copyright (c) 2017 OysterPack, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package message

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// codec names
const (
	MSGPACK = "msgpack"
	JSON    = "json"
)

// Codec serializes messages into publish bodies
type Codec interface {
	Name() string
	ContentType() string
	Marshal(m Message) ([]byte, error)
	Unmarshal(data []byte) (Message, error)
}

// CodecByName returns the codec registered under name: msgpack or json
func CodecByName(name string) (Codec, error) {
	switch name {
	case MSGPACK:
		return MsgPackCodec, nil
	case JSON:
		return JSONCodec, nil
	default:
		return nil, fmt.Errorf("%w : %q", ErrUnknownCodec, name)
	}
}

// CodecByContentType returns the codec for a publish content type. A message without a content type is msgpack.
func CodecByContentType(contentType string) (Codec, error) {
	switch contentType {
	case "", MsgPackCodec.ContentType():
		return MsgPackCodec, nil
	case JSONCodec.ContentType():
		return JSONCodec, nil
	default:
		return nil, fmt.Errorf("%w : content type %q", ErrUnknownCodec, contentType)
	}
}

var (
	// MsgPackCodec is the default codec
	MsgPackCodec Codec = msgpackCodec{}
	// JSONCodec encodes records as JSON
	JSONCodec Codec = jsonCodec{}
)

type msgpackCodec struct{}

type msgpackRecord struct {
	V int                `msgpack:"v"`
	S SourceRecord       `msgpack:"s"`
	W int64              `msgpack:"w"`
	T string             `msgpack:"t"`
	O string             `msgpack:"o"`
	G string             `msgpack:"g"`
	D msgpack.RawMessage `msgpack:"d"`
}

func (msgpackCodec) Name() string { return MSGPACK }

func (msgpackCodec) ContentType() string { return "application/msgpack" }

func (msgpackCodec) Marshal(m Message) ([]byte, error) {
	return msgpack.Marshal(NewRecord(m))
}

func (msgpackCodec) Unmarshal(data []byte) (Message, error) {
	var r msgpackRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Message{}, err
	}
	return toMessage(r.V, r.S, r.W, r.T, r.O, r.G, func(v interface{}) error {
		return msgpack.Unmarshal(r.D, v)
	})
}

type jsonCodec struct{}

type jsonRecord struct {
	V int                 `json:"v"`
	S SourceRecord        `json:"s"`
	W int64               `json:"w"`
	T string              `json:"t"`
	O string              `json:"o"`
	G string              `json:"g"`
	D jsoniter.RawMessage `json:"d"`
}

func (jsonCodec) Name() string { return JSON }

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) Marshal(m Message) ([]byte, error) {
	return json.Marshal(NewRecord(m))
}

func (jsonCodec) Unmarshal(data []byte) (Message, error) {
	var r jsonRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return Message{}, err
	}
	return toMessage(r.V, r.S, r.W, r.T, r.O, r.G, func(v interface{}) error {
		return json.Unmarshal(r.D, v)
	})
}
