package llmprovider

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AssemblerState is the state of a ToolCallAssembler.
type AssemblerState int

const (
	// AssemblerIdle means no tool call is open.
	AssemblerIdle AssemblerState = iota
	// AssemblerAccumulating means a tool call was started and is collecting argument fragments.
	AssemblerAccumulating
)

func (s AssemblerState) String() string {
	switch s {
	case AssemblerIdle:
		return "idle"
	case AssemblerAccumulating:
		return "accumulating"
	default:
		return fmt.Sprintf("AssemblerState(%d)", int(s))
	}
}

// ToolCallAssembler rebuilds one tool invocation from a vendor's fragmented
// stream: a start event carrying id and name, any number of partial JSON
// argument fragments, and an end event.
//
// The zero value is an idle assembler ready for use.
type ToolCallAssembler struct {
	state AssemblerState
	id    string
	name  string
	args  strings.Builder
}

// Start opens a tool call. An empty id is replaced with "call_0"; use a
// ToolCallSet when several calls share a generation so ids stay unique.
// Starting while already accumulating drops the previous partial call.
func (a *ToolCallAssembler) Start(id, name string) {
	if id == "" {
		id = syntheticCallID(0)
	}
	a.state = AssemblerAccumulating
	a.id = id
	a.name = name
	a.args.Reset()
}

// Delta appends a raw argument fragment. Fragments are kept verbatim since
// they are not valid JSON until the call ends. Returns false when idle.
func (a *ToolCallAssembler) Delta(fragment string) bool {
	if a.state != AssemblerAccumulating {
		return false
	}
	a.args.WriteString(fragment)
	return true
}

// End closes the open call and returns it. Arguments that do not parse as a
// JSON object (including an empty buffer) become an empty map; a model may
// legitimately call a tool without arguments. Returns false when idle.
func (a *ToolCallAssembler) End() (ToolCallRequest, bool) {
	if a.state != AssemblerAccumulating {
		return ToolCallRequest{}, false
	}
	call := ToolCallRequest{
		ID:        a.id,
		Name:      a.name,
		Arguments: ParseToolArguments(a.args.String()),
	}
	a.Reset()
	return call, true
}

// Reset discards any partial call and returns to idle.
func (a *ToolCallAssembler) Reset() {
	a.state = AssemblerIdle
	a.id = ""
	a.name = ""
	a.args.Reset()
}

// State returns the current state.
func (a *ToolCallAssembler) State() AssemblerState {
	return a.state
}

// ParseToolArguments decodes a JSON object, returning an empty map for
// anything that is not one.
func ParseToolArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func syntheticCallID(n int) string {
	return fmt.Sprintf("call_%d", n)
}

// ToolCallSet manages the assemblers of one generation, keyed by the
// vendor's block or choice index, and keeps tool call ids unique within it.
type ToolCallSet struct {
	open    map[int]*ToolCallAssembler
	used    map[string]bool
	counter int
}

// NewToolCallSet returns an empty set.
func NewToolCallSet() *ToolCallSet {
	return &ToolCallSet{
		open: make(map[int]*ToolCallAssembler),
		used: make(map[string]bool),
	}
}

// Start opens a call at index. A missing or already used id is replaced
// with a synthesized call_<n>.
func (s *ToolCallSet) Start(index int, id, name string) {
	a, ok := s.open[index]
	if !ok {
		a = &ToolCallAssembler{}
		s.open[index] = a
	}
	a.Start(s.claimID(id), name)
}

// Has reports whether a call is open at index.
func (s *ToolCallSet) Has(index int) bool {
	a, ok := s.open[index]
	return ok && a.State() == AssemblerAccumulating
}

// Delta appends a fragment to the call at index. Returns false if none is open.
func (s *ToolCallSet) Delta(index int, fragment string) bool {
	a, ok := s.open[index]
	if !ok {
		return false
	}
	return a.Delta(fragment)
}

// End closes the call at index.
func (s *ToolCallSet) End(index int) (ToolCallRequest, bool) {
	a, ok := s.open[index]
	if !ok {
		return ToolCallRequest{}, false
	}
	delete(s.open, index)
	return a.End()
}

// Finish closes every open call in index order. Used by vendors that signal
// the end of all calls at once (e.g. a finish reason) instead of per call.
func (s *ToolCallSet) Finish() []ToolCallRequest {
	indexes := make([]int, 0, len(s.open))
	for index := range s.open {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	var calls []ToolCallRequest
	for _, index := range indexes {
		if call, ok := s.End(index); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// Discard drops every unterminated call and returns how many were dropped.
// An unterminated call is not actionable.
func (s *ToolCallSet) Discard() int {
	n := 0
	for index, a := range s.open {
		if a.State() == AssemblerAccumulating {
			n++
		}
		delete(s.open, index)
	}
	return n
}

// Open returns the number of calls currently accumulating.
func (s *ToolCallSet) Open() int {
	n := 0
	for _, a := range s.open {
		if a.State() == AssemblerAccumulating {
			n++
		}
	}
	return n
}

// Complete builds a call for vendors that deliver whole invocations
// (arguments already decoded), giving it a unique id.
func (s *ToolCallSet) Complete(id, name string, args map[string]any) ToolCallRequest {
	if args == nil {
		args = map[string]any{}
	}
	return ToolCallRequest{ID: s.claimID(id), Name: name, Arguments: args}
}

func (s *ToolCallSet) claimID(id string) string {
	if id != "" && !s.used[id] {
		s.used[id] = true
		return id
	}
	for {
		candidate := syntheticCallID(s.counter)
		s.counter++
		if !s.used[candidate] {
			s.used[candidate] = true
			return candidate
		}
	}
}
