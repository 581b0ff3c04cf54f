// File: api/events_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestData_Terminated(t *testing.T) {
	d := NewDataString("hello")
	assert.Equal(t, KindData, d.Kind())
	assert.Equal(t, "hello", string(d.Payload()))
	assert.Equal(t, 6, d.Len())
	assert.Equal(t, []byte("hello\x00"), d.Raw())
}

func TestData_CopiesInput(t *testing.T) {
	src := []byte("abc")
	d := NewData(src)
	src[0] = 'x'
	assert.Equal(t, "abc", d.String())
}

func TestData_Empty(t *testing.T) {
	d := NewData(nil)
	assert.Equal(t, 1, d.Len())
	assert.Empty(t, d.Payload())

	var zero Data
	assert.Nil(t, zero.Payload())
	assert.Equal(t, 0, zero.Len())
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "data", KindData.String())
	assert.Equal(t, "unknown", EventKind(42).String())
}
