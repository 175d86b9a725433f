//go:build linux

package ime

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineName(t *testing.T) {
	desc := dbus.MakeVariant([]interface{}{
		"IBusEngineDesc",
		map[string]dbus.Variant{},
		"libpinyin",
		"Intelligent Pinyin",
	})

	name, err := engineName(desc)
	require.NoError(t, err)
	assert.Equal(t, "libpinyin", name)
}

func TestEngineNameRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		desc dbus.Variant
	}{
		{"not a struct", dbus.MakeVariant("xkb:us::eng")},
		{"too short", dbus.MakeVariant([]interface{}{"IBusEngineDesc", map[string]dbus.Variant{}})},
		{"wrong type", dbus.MakeVariant([]interface{}{"IBusText", map[string]dbus.Variant{}, "x"})},
		{"name not string", dbus.MakeVariant([]interface{}{"IBusEngineDesc", map[string]dbus.Variant{}, uint32(1)})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engineName(tt.desc)
			assert.Error(t, err)
		})
	}
}

func TestParseIBusAddress(t *testing.T) {
	addr, err := parseIBusAddress("unix:path=/home/u/.cache/ibus/dbus-x,guid=1\n")
	require.NoError(t, err)
	assert.Equal(t, "unix:path=/home/u/.cache/ibus/dbus-x,guid=1", addr)

	_, err = parseIBusAddress("(null)\n")
	assert.Error(t, err)
	_, err = parseIBusAddress("")
	assert.Error(t, err)
}

func TestContainsInputMethod(t *testing.T) {
	list := []fcitx5InputMethod{
		{UniqueName: "keyboard-us", Name: "English (US)"},
		{UniqueName: "pinyin", Name: "Pinyin"},
	}
	assert.True(t, containsInputMethod(list, "pinyin"))
	assert.False(t, containsInputMethod(list, "Pinyin"))
}

func TestLinuxPlatformUnsupportedWithoutFramework(t *testing.T) {
	fail := func() (*dbus.Conn, error) { return nil, errors.New("no bus") }
	p := &LinuxPlatform{sessionBus: fail, ibusBus: fail}

	_, err := p.Current()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.Contains(t, err.Error(), "fcitx-remote -s <input-method>")

	err = p.Select("pinyin")
	assert.True(t, errors.Is(err, ErrUnsupported))
}
