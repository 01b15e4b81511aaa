// Package serialize implements the reload/reexec text stream (§4.7): one
// key=value pair per line, a blank line between unit records, and file
// descriptors handed off as indices into a sidecar FDSet rather than as
// raw values baked into the text.
package serialize

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shinygold/unitengine/internal/fs"
	"github.com/shinygold/unitengine/internal/ratelimit"
	"github.com/shinygold/unitengine/internal/unit"
)

// Field is one key=value line. A slice of Field rather than a map
// preserves write order and tolerates duplicate keys, which the stream
// format itself does not forbid.
type Field struct {
	Key   string
	Value string
}

// Record is everything serialized for one unit: a blank line terminates it.
type Record struct {
	Fields []Field
}

func (r *Record) set(key, value string) {
	r.Fields = append(r.Fields, Field{Key: key, Value: value})
}

func (r *Record) get(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// FDSet hands off open file descriptors across reexec: the text stream
// only ever stores an FDSet index, never the descriptor's numeric value,
// since that number is meaningless once the process image changes.
type FDSet struct {
	fds []int
}

// Store appends fd and returns its index.
func (s *FDSet) Store(fd int) int {
	s.fds = append(s.fds, fd)
	return len(s.fds) - 1
}

// Get resolves an index back to a descriptor.
func (s *FDSet) Get(index int) (int, bool) {
	if index < 0 || index >= len(s.fds) {
		return 0, false
	}
	return s.fds[index], true
}

// Write encodes records to w in the wire format: key=value lines, a blank
// line between records.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		for _, f := range rec.Fields {
			if _, err := fmt.Fprintf(bw, "%s=%s\n", f.Key, f.Value); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Read decodes records from r, splitting on blank lines. Malformed lines
// (no '=') are skipped rather than treated as fatal, matching
// deserialize_skip's forward-compatibility contract (§6).
func Read(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var records []Record
	var current Record
	flush := func() {
		if len(current.Fields) > 0 {
			records = append(records, current)
			current = Record{}
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		current.set(key, value)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("serialize: reading stream: %w", err)
	}
	return records, nil
}

// Save writes records to path using an atomic rename, so a crash mid-write
// never leaves a truncated state file for the next start to trip over.
func Save(path string, records []Record) error {
	var buf strings.Builder
	if err := Write(&buf, records); err != nil {
		return fmt.Errorf("serialize: encoding: %w", err)
	}
	if err := fs.AtomicWriteFile(path, []byte(buf.String()), 0o600); err != nil {
		return fmt.Errorf("serialize: writing %s: %w", path, err)
	}
	return nil
}

// RecordForUnit builds the record §4.7 describes for u: id, invocation id,
// load state, timestamps, condition results, rate-limiter state, and
// cgroup path. Per-type items are the caller's responsibility to append
// via the vtable Serialize callback before writing.
func RecordForUnit(u *unit.Unit) Record {
	var rec Record
	rec.set("id", u.ID)
	rec.set("invocation-id", u.InvocationID.String())
	rec.set("load-state", u.LoadState.String())
	rec.set("active-state", u.ActiveStateValue.String())
	rec.set("sub-state", u.SubState)
	rec.set("state-change-timestamp", formatTime(u.StateChangeTimestamp.Wall))
	rec.set("inactive-exit-timestamp", formatTime(u.InactiveExitTimestamp.Wall))
	rec.set("active-enter-timestamp", formatTime(u.ActiveEnterTimestamp.Wall))
	rec.set("active-exit-timestamp", formatTime(u.ActiveExitTimestamp.Wall))
	rec.set("inactive-enter-timestamp", formatTime(u.InactiveEnterTimestamp.Wall))
	rec.set("condition-result", strconv.FormatBool(u.ConditionResult))
	rec.set("assert-result", strconv.FormatBool(u.AssertResult))
	rec.set("cgroup-path", u.CgroupPath)

	if u.StartLimit != nil {
		now := time.Now()
		rec.set("start-limit-tokens", strconv.FormatFloat(u.StartLimit.Tokens(now), 'f', -1, 64))
		rec.set("start-limit-last-refill", formatTime(u.StartLimit.LastRefill()))
	}
	return rec
}

// ApplyRecord installs a previously-serialized record's fields back onto
// u, the counterpart of RecordForUnit invoked during coldplug. Unknown
// keys are ignored so newer state files remain loadable by older code and
// vice versa (§6 deserialize_skip).
func ApplyRecord(u *unit.Unit, rec Record) error {
	if id, ok := rec.get("id"); ok {
		u.ID = id
	}
	if raw, ok := rec.get("invocation-id"); ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("serialize: parsing invocation-id for %s: %w", u.ID, err)
		}
		u.InvocationID = id
	}
	if raw, ok := rec.get("load-state"); ok {
		if ls, ok := parseLoadState(raw); ok {
			u.LoadState = ls
		}
	}
	if raw, ok := rec.get("active-state"); ok {
		for s := unit.StateInactive; s <= unit.StateMaintenance; s++ {
			if s.String() == raw {
				u.ActiveStateValue = s
				break
			}
		}
	}
	if raw, ok := rec.get("sub-state"); ok {
		u.SubState = raw
	}
	if raw, ok := rec.get("state-change-timestamp"); ok {
		if t, err := parseTime(raw); err == nil {
			u.StateChangeTimestamp = unit.Timestamp{Wall: t}
		}
	}
	if raw, ok := rec.get("inactive-exit-timestamp"); ok {
		if t, err := parseTime(raw); err == nil {
			u.InactiveExitTimestamp = unit.Timestamp{Wall: t}
		}
	}
	if raw, ok := rec.get("active-enter-timestamp"); ok {
		if t, err := parseTime(raw); err == nil {
			u.ActiveEnterTimestamp = unit.Timestamp{Wall: t}
		}
	}
	if raw, ok := rec.get("active-exit-timestamp"); ok {
		if t, err := parseTime(raw); err == nil {
			u.ActiveExitTimestamp = unit.Timestamp{Wall: t}
		}
	}
	if raw, ok := rec.get("inactive-enter-timestamp"); ok {
		if t, err := parseTime(raw); err == nil {
			u.InactiveEnterTimestamp = unit.Timestamp{Wall: t}
		}
	}
	if raw, ok := rec.get("condition-result"); ok {
		u.ConditionResult, _ = strconv.ParseBool(raw)
	}
	if raw, ok := rec.get("assert-result"); ok {
		u.AssertResult, _ = strconv.ParseBool(raw)
	}
	if raw, ok := rec.get("cgroup-path"); ok {
		u.CgroupPath = raw
	}

	tokensRaw, hasTokens := rec.get("start-limit-tokens")
	refillRaw, hasRefill := rec.get("start-limit-last-refill")
	if hasTokens && hasRefill && u.StartLimit != nil {
		tokens, err := strconv.ParseFloat(tokensRaw, 64)
		if err != nil {
			return fmt.Errorf("serialize: parsing start-limit-tokens for %s: %w", u.ID, err)
		}
		lastRefill, err := parseTime(refillRaw)
		if err != nil {
			return fmt.Errorf("serialize: parsing start-limit-last-refill for %s: %w", u.ID, err)
		}
		u.StartLimit = ratelimit.Restore(u.StartLimit.Interval(), u.StartLimit.Burst(), tokens, lastRefill)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseLoadState(s string) (unit.LoadState, bool) {
	states := []unit.LoadState{
		unit.LoadStub, unit.LoadLoaded, unit.LoadMerged, unit.LoadNotFound,
		unit.LoadBadSetting, unit.LoadError, unit.LoadMasked,
	}
	for _, ls := range states {
		if ls.String() == s {
			return ls, true
		}
	}
	return 0, false
}
