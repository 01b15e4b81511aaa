package manager

import (
	"fmt"
	"os"

	"github.com/shinygold/unitengine/internal/serialize"
)

// Serialize writes every managed unit's state to path using the §4.7 wire
// format, the state a reload or re-exec restores via Deserialize.
func (m *Manager) Serialize(path string) error {
	m.mu.Lock()
	records := make([]serialize.Record, 0, len(m.units))
	for _, u := range m.units {
		records = append(records, serialize.RecordForUnit(u))
	}
	m.mu.Unlock()

	if err := serialize.Save(path, records); err != nil {
		return fmt.Errorf("manager: serializing state: %w", err)
	}
	return nil
}

// Deserialize applies a previously-serialized state file onto the units
// already loaded in this manager (coldplug): units present in the file but
// not yet created are skipped, since unit creation itself happens through
// NewUnit as fragments load.
func (m *Manager) Deserialize(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("manager: opening state file %s: %w", path, err)
	}
	defer f.Close()

	records, err := serialize.Read(f)
	if err != nil {
		return fmt.Errorf("manager: reading state file %s: %w", path, err)
	}

	for _, rec := range records {
		id, ok := recordID(rec)
		if !ok {
			continue
		}
		m.mu.Lock()
		u, exists := m.units[id]
		m.mu.Unlock()
		if !exists {
			continue
		}
		if err := serialize.ApplyRecord(u, rec); err != nil {
			return fmt.Errorf("manager: applying state for %s: %w", id, err)
		}
	}
	return nil
}

func recordID(rec serialize.Record) (string, bool) {
	for _, f := range rec.Fields {
		if f.Key == "id" {
			return f.Value, true
		}
	}
	return "", false
}
