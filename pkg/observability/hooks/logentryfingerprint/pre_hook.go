// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package logentryfingerprint

import (
	"encoding/hex"
	"fmt"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/types"
	"lukechampine.com/blake3"
)

// FieldValue is the custom type for a field, which
// contains the resulting fingerprint.
type FieldValue string

// PreHook adds a stable fingerprint to each log entry. The fingerprint
// identifies the place a log entry is issued from: it depends on the level,
// the format string (or message) and the types of arguments and keys of
// fields, but not on their values or on trace IDs.
//
// It is used to group log entries, for example to count how often a
// publish fails for the same reason.
type PreHook struct{}

var _ logger.PreHook = PreHook{}

const (
	// FieldKey is the key of the field with the fingerprint.
	FieldKey = "fwpublish/logentryfingerprint"

	fingerprintSize = 8
)

func fingerprint(
	level logger.Level,
	staticMessage string,
	fields field.AbstractFields,
	customArgs []any,
) types.PreHookResult {
	h := blake3.New(fingerprintSize, nil)
	fmt.Fprintf(h, "%s-%s", level, staticMessage)
	for _, arg := range customArgs {
		fmt.Fprintf(h, "\x00%T", arg)
	}
	if fields != nil {
		fields.ForEachField(func(f *field.Field) bool {
			h.Write([]byte{0})
			h.Write([]byte(f.Key))
			return true
		})
	}

	return types.PreHookResult{
		ExtraFields: &field.Field{
			Key:   FieldKey,
			Value: FieldValue(hex.EncodeToString(h.Sum(nil))),
		},
	}
}

// ProcessInput implements logger.PreHook.
func (PreHook) ProcessInput(_ belt.TraceIDs, level logger.Level, args ...any) types.PreHookResult {
	return fingerprint(level, "", nil, args)
}

// ProcessInputf implements logger.PreHook.
func (PreHook) ProcessInputf(_ belt.TraceIDs, level logger.Level, format string, _ ...any) types.PreHookResult {
	return fingerprint(level, format, nil, nil)
}

// ProcessInputFields implements logger.PreHook.
func (PreHook) ProcessInputFields(_ belt.TraceIDs, level logger.Level, message string, fields field.AbstractFields) types.PreHookResult {
	return fingerprint(level, message, fields, nil)
}
