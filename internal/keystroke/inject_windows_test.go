//go:build windows

package keystroke

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyboardInputSize(t *testing.T) {
	// sizeof(INPUT) is 40 on 64-bit Windows and 28 on 32-bit.
	want := uintptr(28)
	if unsafe.Sizeof(uintptr(0)) == 8 {
		want = 40
	}
	assert.Equal(t, want, unsafe.Sizeof(keyboardInput{}))
}

func TestToInputs(t *testing.T) {
	b, err := Parse("ctrl+space")
	require.NoError(t, err)

	inputs := toInputs(b)
	require.Len(t, inputs, 4)

	assert.Equal(t, uint16(0x11), inputs[0].ki.vk)
	assert.Equal(t, uint32(0), inputs[0].ki.flags)
	assert.Equal(t, uint16(0x20), inputs[1].ki.vk)
	assert.Equal(t, uint16(0x20), inputs[2].ki.vk)
	assert.Equal(t, uint32(keyeventfKeyUp), inputs[2].ki.flags)
	assert.Equal(t, uint16(0x11), inputs[3].ki.vk)
	for _, in := range inputs {
		assert.Equal(t, uint32(inputKeyboard), in.typ)
	}
}

func TestSendEmptyBatch(t *testing.T) {
	assert.NoError(t, NewInjector().Send(Batch{}))
}
