// Copyright 2024 The Nakama Authors
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

// Package netid holds the player identifiers issued by the online subsystems and the
// composite identifier that fuses a platform account with an EOS account.
package netid

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrEmptyID         = errors.New("empty player id")
	ErrInvalidIDFormat = errors.New("invalid player id format")
)

// ID is a player identifier issued by one online subsystem.
type ID interface {
	// Type is the name of the subsystem that issued the id.
	Type() string
	Bytes() []byte
	String() string
	IsValid() bool
}

// Parser decodes the string and binary forms of one subsystem's ids.
type Parser interface {
	ParseID(s string) (ID, error)
	IDFromBytes(b []byte) (ID, error)
}

// StringID is a platform id whose wire form is its text.
type StringID struct {
	subsystem string
	value     string
}

func NewStringID(subsystem, value string) StringID {
	return StringID{subsystem: subsystem, value: value}
}

func (s StringID) Type() string   { return s.subsystem }
func (s StringID) Bytes() []byte  { return []byte(s.value) }
func (s StringID) String() string { return s.value }
func (s StringID) IsValid() bool  { return s.value != "" }

// StringParser parses StringIDs for a single subsystem.
type StringParser struct {
	Subsystem string
}

func (p StringParser) ParseID(s string) (ID, error) {
	if s == "" {
		return nil, ErrEmptyID
	}
	return NewStringID(p.Subsystem, s), nil
}

func (p StringParser) IDFromBytes(b []byte) (ID, error) {
	if len(b) == 0 {
		return nil, ErrEmptyID
	}
	return NewStringID(p.Subsystem, string(b)), nil
}

// BinaryID carries the id of a platform other than the active one. The data is kept
// verbatim and never interpreted.
type BinaryID struct {
	subsystem string
	data      []byte
}

func NewBinaryID(subsystem string, data []byte) BinaryID {
	return BinaryID{subsystem: subsystem, data: append([]byte(nil), data...)}
}

func (b BinaryID) Type() string   { return b.subsystem }
func (b BinaryID) Bytes() []byte  { return append([]byte(nil), b.data...) }
func (b BinaryID) String() string { return hex.EncodeToString(b.data) }
func (b BinaryID) IsValid() bool  { return len(b.data) > 0 }

// BinaryParser decodes BinaryIDs from their hex text form.
type BinaryParser struct {
	Subsystem string
}

func (p BinaryParser) ParseID(s string) (ID, error) {
	if s == "" {
		return nil, ErrEmptyID
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDFormat, err)
	}
	return NewBinaryID(p.Subsystem, data), nil
}

func (p BinaryParser) IDFromBytes(b []byte) (ID, error) {
	if len(b) == 0 {
		return nil, ErrEmptyID
	}
	return NewBinaryID(p.Subsystem, b), nil
}

// present reports whether an optional id component should be treated as set.
func present(id ID) bool {
	return id != nil && id.IsValid()
}
