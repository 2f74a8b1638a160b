// Copyright The Rye Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package planrestore

import (
	"encoding/binary"
	"fmt"
)

// Stream is a parsed plan wire-format envelope: Stream layout:
//
//	[4B packed-header-size] [packed-header-bytes]
//	[4B packed-body-size]   [packed-body-bytes]
//
// Endianness is big-endian; offsets inside Body are byte
// offsets from the start of Body.
type Stream struct {
	Header []byte
	Body   []byte
}

// ParseStream splits raw wire bytes into the header and body segments,
// validating the two length prefixes against the actual buffer length
// before anything downstream trusts them.
func ParseStream(raw []byte) (*Stream, error) {
	r := &cursor{buf: raw}

	headerLen, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("planrestore: read header size: %w", err)
	}
	header, err := r.take(int(headerLen))
	if err != nil {
		return nil, fmt.Errorf("planrestore: read header bytes: %w", err)
	}

	bodyLen, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("planrestore: read body size: %w", err)
	}
	body, err := r.take(int(bodyLen))
	if err != nil {
		return nil, fmt.Errorf("planrestore: read body bytes: %w", err)
	}

	return &Stream{Header: header, Body: body}, nil
}

// cursor is the shared big-endian reader every pack/unpack routine in this
// package advances: each routine takes the buffer plus an output struct and
// leaves the read position just past what it consumed, the Go rendering of
// returning an advanced buffer pointer.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, &ErrTruncatedStream{Need: n, Have: c.remaining()}
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *cursor) i64() (int64, error) {
	v, err := c.u64()
	return int64(v), err
}

func (c *cursor) str(n int) (string, error) {
	b, err := c.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *cursor) byte() (byte, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}
