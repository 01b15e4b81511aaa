package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitObjectPathEscapesSpecialChars(t *testing.T) {
	path := unitObjectPath("a-b.service")
	assert.Equal(t, "/org/freedesktop/systemd1/unit/a_2db_2eservice", string(path))
}

func TestUnitObjectPathEscapesAt(t *testing.T) {
	path := unitObjectPath("getty@tty1.service")
	assert.Equal(t, "/org/freedesktop/systemd1/unit/getty_40tty1_2eservice", string(path))
}

// fakeConnection is a Connection double used by this package's tests.
type fakeConnection struct {
	changed    []string
	newUnits   []string
	removed    []string
	closeCalls int
}

func (f *fakeConnection) PropertiesChanged(unitID string, changed map[string]any) error {
	f.changed = append(f.changed, unitID)
	return nil
}

func (f *fakeConnection) UnitNew(unitID string) error {
	f.newUnits = append(f.newUnits, unitID)
	return nil
}

func (f *fakeConnection) UnitRemoved(unitID string) error {
	f.removed = append(f.removed, unitID)
	return nil
}

func (f *fakeConnection) Close() error {
	f.closeCalls++
	return nil
}

func TestFakeConnectionSatisfiesInterface(t *testing.T) {
	var c Connection = &fakeConnection{}
	assert.NoError(t, c.PropertiesChanged("a.service", map[string]any{"ActiveState": "active"}))
	assert.NoError(t, c.UnitNew("a.service"))
	assert.NoError(t, c.UnitRemoved("a.service"))
	assert.NoError(t, c.Close())
}
