// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSystemMessage(t *testing.T) {
	system, turns := splitSystemMessage([]Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	assert.Equal(t, "be terse", system)
	assert.Equal(t, []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, turns)
}

func TestSplitSystemMessage_NoSystem(t *testing.T) {
	system, turns := splitSystemMessage([]Message{{Role: "user", Content: "hi"}})
	assert.Empty(t, system)
	assert.Len(t, turns, 1)
}

func TestSplitSystemMessage_OnlyFirstSystemTaken(t *testing.T) {
	system, turns := splitSystemMessage([]Message{
		{Role: "system", Content: "first"},
		{Role: "system", Content: "second"},
		{Role: "user", Content: "hi"},
	})
	assert.Equal(t, "first", system)
	assert.Len(t, turns, 2)
}

func TestToAnthropicMessages(t *testing.T) {
	out := toAnthropicMessages([]Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	assert.Len(t, out, 2)
}

func TestMaxTokensOrDefault(t *testing.T) {
	assert.EqualValues(t, 1024, maxTokensOrDefault(nil))
	n := 256
	assert.EqualValues(t, 256, maxTokensOrDefault(&n))
}
