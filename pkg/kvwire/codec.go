// Package kvwire contains the messages and the gRPC service description for
// the partition service. The messages use the protobuf wire format and are
// carried inside a BytesValue on the wire.
package kvwire

//
//Copyright 2019 Telenor Digital AS
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//http://www.apache.org/licenses/LICENSE-2.0
//
//Unless required by applicable law or agreed to in writing, software
//distributed under the License is distributed on an "AS IS" BASIS,
//WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//See the License for the specific language governing permissions and
//limitations under the License.
//
import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is a message that can be sent through the partition service
type Message interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(buf []byte) error
}

var errInvalidField = errors.New("invalid field type")

// fieldFunc consumes a single field value and returns the number of bytes
// used. Unknown fields return -1 and are skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, buf []byte) (int, error)

func decode(buf []byte, fn fieldFunc) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return protowire.ParseError(n)
		}
		buf = buf[n:]
		used, err := fn(num, typ, buf)
		if err != nil {
			return err
		}
		if used < 0 {
			used = protowire.ConsumeFieldValue(num, typ, buf)
			if used < 0 {
				return protowire.ParseError(used)
			}
		}
		buf = buf[used:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

// appendInts writes a packed repeated int field
func appendInts(b []byte, num protowire.Number, v []int) []byte {
	if len(v) == 0 {
		return b
	}
	var packed []byte
	for _, i := range v {
		packed = protowire.AppendVarint(packed, uint64(i))
	}
	return appendBytes(b, num, packed)
}

func consumeString(typ protowire.Type, buf []byte) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, errInvalidField
	}
	v, n := protowire.ConsumeString(buf)
	if n < 0 {
		return "", 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, buf []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errInvalidField
	}
	v, n := protowire.ConsumeBytes(buf)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeVarint(typ protowire.Type, buf []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errInvalidField
	}
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// consumeInts reads a repeated int field. Both packed and unpacked
// encodings are accepted.
func consumeInts(dst []int, typ protowire.Type, buf []byte) ([]int, int, error) {
	if typ == protowire.VarintType {
		v, n, err := consumeVarint(typ, buf)
		if err != nil {
			return dst, 0, err
		}
		return append(dst, int(v)), n, nil
	}
	packed, n, err := consumeBytes(typ, buf)
	if err != nil {
		return dst, 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return dst, 0, protowire.ParseError(m)
		}
		dst = append(dst, int(v))
		packed = packed[m:]
	}
	return dst, n, nil
}
