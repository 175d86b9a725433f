//go:build linux

package probe

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccessible struct {
	kids  map[objectRef][]objectRef
	roles map[objectRef]uint32
	names map[objectRef]string
	calls int
}

func (f *fakeAccessible) children(ref objectRef) ([]objectRef, error) {
	f.calls++
	kids, ok := f.kids[ref]
	if !ok {
		return nil, nil
	}
	return kids, nil
}

func (f *fakeAccessible) role(ref objectRef) (uint32, error) {
	return f.roles[ref], nil
}

func (f *fakeAccessible) name(ref objectRef) (string, error) {
	n, ok := f.names[ref]
	if !ok {
		return "", errors.New("no such object")
	}
	return n, nil
}

func ref(app, path string) objectRef {
	return objectRef{Name: app, Path: dbus.ObjectPath(path)}
}

func shellTree() (*fakeAccessible, *atspiTree) {
	root := ref(registryService, rootPath)
	shell := ref(":1.10", "/org/a11y/atspi/accessible/root")
	panel := ref(":1.10", "/org/a11y/atspi/accessible/1")
	clock := ref(":1.10", "/org/a11y/atspi/accessible/2")
	keyboard := ref(":1.10", "/org/a11y/atspi/accessible/3")
	toggle := ref(":1.10", "/org/a11y/atspi/accessible/4")
	editor := ref(":1.20", "/org/a11y/atspi/accessible/root")

	fa := &fakeAccessible{
		kids: map[objectRef][]objectRef{
			root:  {editor, shell, ref(":1.30", nullPath)},
			shell: {panel},
			panel: {clock, keyboard, toggle, shell}, // aliases back to shell
		},
		roles: map[objectRef]uint32{
			clock:    atspiRolePushButton,
			keyboard: atspiRolePushButton,
			toggle:   atspiRoleToggleButton,
			panel:    39,
		},
		names: map[objectRef]string{
			shell:    "gnome-shell",
			editor:   "gedit",
			clock:    "Oct 18 09:00",
			keyboard: "Input Indicator en",
			toggle:   "Input Indicator zh",
		},
	}
	return fa, &atspiTree{bus: fa}
}

func TestATSPIFindChild(t *testing.T) {
	_, tree := shellTree()
	root, err := tree.Root()
	require.NoError(t, err)

	shell, err := root.FindChild("gnome-shell")
	require.NoError(t, err)
	require.NotNil(t, shell)
	label, err := shell.Label()
	require.NoError(t, err)
	assert.Equal(t, "gnome-shell", label)

	missing, err := root.FindChild("plasmashell")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestATSPIFindDescendantsStopsOnCycles(t *testing.T) {
	fa, tree := shellTree()
	root, err := tree.Root()
	require.NoError(t, err)
	shell, err := root.FindChild("gnome-shell")
	require.NoError(t, err)

	buttons, err := shell.FindDescendants(RoleButton)
	require.NoError(t, err)
	require.Len(t, buttons, 3)

	var labels []string
	for _, b := range buttons {
		l, err := b.Label()
		require.NoError(t, err)
		labels = append(labels, l)
	}
	assert.Equal(t, []string{"Oct 18 09:00", "Input Indicator en", "Input Indicator zh"}, labels)
	assert.Less(t, fa.calls, 10)
}

func TestATSPIProbeEndToEnd(t *testing.T) {
	_, tree := shellTree()
	src := sourceFunc(func() (Tree, error) { return tree, nil })

	p := New(src, mustLocator(t, "gnome-shell", `Input Indicator (\S+)`), nil)
	token, found, err := p.Read()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "en", token)
}

func TestATSPIClosedTree(t *testing.T) {
	_, tree := shellTree()
	require.NoError(t, tree.Close())
	_, err := tree.Root()
	assert.Error(t, err)
}

type sourceFunc func() (Tree, error)

func (f sourceFunc) Open() (Tree, error) { return f() }
