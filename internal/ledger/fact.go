// Package ledger implements the progress and task ledgers: the derived
// view of a spec's tasks.md file, and the accumulated per-task dispatch
// outcomes layered on top of it.
package ledger

import "encoding/json"

// Fact is a single entry in a run's fact log. Keys use a dotted
// namespace (ledger.progress.*, ledger.task.*, dispatch_*,
// classification_*). Later writes for the same key override earlier ones
// for lookup purposes, but both entries persist in the ordered list for
// audit.
type Fact struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Facts is an ordered, append-dominant fact log.
type Facts struct {
	entries []Fact
}

// NewFacts returns an empty fact log.
func NewFacts() *Facts {
	return &Facts{}
}

// Append adds a fact to the end of the log.
func (f *Facts) Append(key, value string, confidence float64) {
	f.entries = append(f.entries, Fact{Key: key, Value: value, Confidence: confidence})
}

// AppendJSON JSON-encodes v and appends it as a fact value.
func (f *Facts) AppendJSON(key string, v any, confidence float64) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.Append(key, string(b), confidence)
	return nil
}

// All returns the full ordered fact list.
func (f *Facts) All() []Fact {
	out := make([]Fact, len(f.entries))
	copy(out, f.entries)
	return out
}

// Lookup returns the most recently written fact for key, if any.
func (f *Facts) Lookup(key string) (Fact, bool) {
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Key == key {
			return f.entries[i], true
		}
	}
	return Fact{}, false
}

// LookupValue returns the raw string value of the most recent fact for key.
func (f *Facts) LookupValue(key string) (string, bool) {
	fact, ok := f.Lookup(key)
	if !ok {
		return "", false
	}
	return fact.Value, true
}
