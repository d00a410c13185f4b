// Package variables holds the named values that test steps produce and
// reference while a test case runs.
package variables

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when a variable name is not in the store.
var ErrNotFound = errors.New("variable not found")

// Metadata records where a variable came from.
type Metadata struct {
	StepIndex   int    `json:"step_index,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
	Action      string `json:"action,omitempty"`
	Description string `json:"description,omitempty"`
}

// Record is a stored variable together with its provenance.
type Record struct {
	Name      string    `json:"name"`
	Value     Value     `json:"value"`
	TypeTag   Kind      `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"metadata"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string    `json:"name"`
		Value     any       `json:"value"`
		TypeTag   Kind      `json:"type"`
		CreatedAt time.Time `json:"created_at"`
		Metadata  Metadata  `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := FromAny(raw.Value)
	if err != nil {
		return fmt.Errorf("variable %q: %w", raw.Name, err)
	}
	// NaN and Inf are written as strings; the type tag restores them.
	if str, ok := val.(String); ok && raw.TypeTag == KindNumber {
		f, err := strconv.ParseFloat(string(str), 64)
		if err != nil {
			return fmt.Errorf("variable %q: number tag on %q", raw.Name, str)
		}
		val = Number(f)
	}
	*r = Record{
		Name:      raw.Name,
		Value:     val,
		TypeTag:   raw.TypeTag,
		CreatedAt: raw.CreatedAt,
		Metadata:  raw.Metadata,
	}
	if r.TypeTag == "" {
		r.TypeTag = val.Kind()
	}
	return nil
}

// Snapshot is a point-in-time copy of a store's variables.
type Snapshot struct {
	Variables  map[string]Record `json:"variables"`
	ExportTime time.Time         `json:"export_time"`
}

// Store maps variable names to records. The zero value is not usable; call
// NewStore. A Store is safe for concurrent use, but a test run expects to
// own its store exclusively.
type Store struct {
	mu      sync.RWMutex
	vars    map[string]Record
	context map[string]any
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		vars:    make(map[string]Record),
		context: make(map[string]any),
		now:     time.Now,
	}
}

// Store saves value under name, replacing any previous value.
func (s *Store) Store(name string, value Value, meta Metadata) {
	if value == nil {
		value = Null{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = Record{
		Name:      name,
		Value:     value,
		TypeTag:   value.Kind(),
		CreatedAt: s.now(),
		Metadata:  meta,
	}
}

func (s *Store) Get(name string) (Value, error) {
	rec, err := s.Info(name)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (s *Store) Info(name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.vars[name]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return rec, nil
}

// Lookup is the non-failing form of Get used by reference resolution.
func (s *Store) Lookup(name string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.vars[name]
	return rec.Value, ok
}

// List returns every variable name with its type tag.
func (s *Store) List() map[string]Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Kind, len(s.vars))
	for name, rec := range s.vars {
		out[name] = rec.TypeTag
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}

func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars := make(map[string]Record, len(s.vars))
	for name, rec := range s.vars {
		vars[name] = rec
	}
	return Snapshot{Variables: vars, ExportTime: s.now()}
}

// Import merges snap into the store. Existing names are overwritten.
func (s *Store) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, rec := range snap.Variables {
		if rec.Value == nil {
			rec.Value = Null{}
		}
		if rec.TypeTag == "" {
			rec.TypeTag = rec.Value.Kind()
		}
		rec.Name = name
		s.vars[name] = rec
	}
}

// SetContext stores transient execution context (execution id, case name)
// that is dropped together with the variables on Clear.
func (s *Store) SetContext(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context[key] = value
}

func (s *Store) Context(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.context[key]
	return v, ok
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars = make(map[string]Record)
	s.context = make(map[string]any)
}
