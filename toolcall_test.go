package llmprovider

import (
	"reflect"
	"testing"
)

func TestToolCallAssembler_FragmentedArguments(t *testing.T) {
	var a ToolCallAssembler
	a.Start("toolu_1", "read_file")
	for _, frag := range []string{`{"pa`, `th": "/t`, `mp/x"}`} {
		if !a.Delta(frag) {
			t.Fatalf("Delta(%q) returned false while accumulating", frag)
		}
	}

	call, ok := a.End()
	if !ok {
		t.Fatal("End() returned false")
	}
	if call.ID != "toolu_1" || call.Name != "read_file" {
		t.Errorf("got id=%q name=%q", call.ID, call.Name)
	}
	want := map[string]any{"path": "/tmp/x"}
	if !reflect.DeepEqual(call.Arguments, want) {
		t.Errorf("Arguments = %v, want %v", call.Arguments, want)
	}
	if a.State() != AssemblerIdle {
		t.Errorf("State() = %v after End, want idle", a.State())
	}
}

func TestToolCallAssembler_ArgumentEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      map[string]any
	}{
		{name: "no fragments", want: map[string]any{}},
		{name: "whitespace only", fragments: []string{"  ", "\n"}, want: map[string]any{}},
		{name: "malformed json", fragments: []string{`{"a": `}, want: map[string]any{}},
		{name: "json null", fragments: []string{"null"}, want: map[string]any{}},
		{name: "json array", fragments: []string{"[1,2]"}, want: map[string]any{}},
		{name: "nested", fragments: []string{`{"a":{"b":[1]}}`}, want: map[string]any{"a": map[string]any{"b": []any{float64(1)}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a ToolCallAssembler
			a.Start("id", "tool")
			for _, frag := range tt.fragments {
				a.Delta(frag)
			}
			call, ok := a.End()
			if !ok {
				t.Fatal("End() returned false")
			}
			if call.Arguments == nil {
				t.Fatal("Arguments is nil, want empty map")
			}
			if !reflect.DeepEqual(call.Arguments, tt.want) {
				t.Errorf("Arguments = %#v, want %#v", call.Arguments, tt.want)
			}
		})
	}
}

func TestToolCallAssembler_IdleIgnoresInput(t *testing.T) {
	var a ToolCallAssembler
	if a.Delta(`{"x":1}`) {
		t.Error("Delta on idle assembler returned true")
	}
	if _, ok := a.End(); ok {
		t.Error("End on idle assembler returned true")
	}
}

func TestToolCallAssembler_EmptyIDIsSynthesized(t *testing.T) {
	var a ToolCallAssembler
	a.Start("", "noop")
	call, _ := a.End()
	if call.ID != "call_0" {
		t.Errorf("ID = %q, want call_0", call.ID)
	}
}

func TestToolCallSet_InterleavedIndexes(t *testing.T) {
	s := NewToolCallSet()
	s.Start(0, "a", "first")
	s.Start(1, "b", "second")
	s.Delta(1, `{"n":`)
	s.Delta(0, `{"m":1}`)
	s.Delta(1, `2}`)

	if s.Open() != 2 {
		t.Fatalf("Open() = %d, want 2", s.Open())
	}

	second, ok := s.End(1)
	if !ok || second.Name != "second" || second.Arguments["n"] != float64(2) {
		t.Errorf("End(1) = %+v, %v", second, ok)
	}
	first, ok := s.End(0)
	if !ok || first.Name != "first" || first.Arguments["m"] != float64(1) {
		t.Errorf("End(0) = %+v, %v", first, ok)
	}
	if _, ok := s.End(0); ok {
		t.Error("second End(0) returned true")
	}
}

func TestToolCallSet_UniqueSynthesizedIDs(t *testing.T) {
	s := NewToolCallSet()
	s.Start(0, "", "x")
	s.Start(1, "", "y")
	s.Start(2, "call_2", "z")
	s.Start(3, "call_2", "dup")

	calls := s.Finish()
	if len(calls) != 4 {
		t.Fatalf("Finish() returned %d calls, want 4", len(calls))
	}

	seen := map[string]bool{}
	for _, c := range calls {
		if c.ID == "" {
			t.Errorf("empty ID for %s", c.Name)
		}
		if seen[c.ID] {
			t.Errorf("duplicate ID %s", c.ID)
		}
		seen[c.ID] = true
	}
	if calls[0].ID != "call_0" || calls[1].ID != "call_1" || calls[2].ID != "call_2" {
		t.Errorf("unexpected ids: %v %v %v", calls[0].ID, calls[1].ID, calls[2].ID)
	}
}

func TestToolCallSet_FinishOrdersByIndex(t *testing.T) {
	s := NewToolCallSet()
	s.Start(5, "e", "five")
	s.Start(2, "b", "two")
	s.Start(9, "i", "nine")

	calls := s.Finish()
	var names []string
	for _, c := range calls {
		names = append(names, c.Name)
	}
	if !reflect.DeepEqual(names, []string{"two", "five", "nine"}) {
		t.Errorf("Finish() order = %v", names)
	}
	if s.Open() != 0 {
		t.Errorf("Open() = %d after Finish", s.Open())
	}
}

func TestToolCallSet_DiscardDropsUnterminated(t *testing.T) {
	s := NewToolCallSet()
	s.Start(0, "a", "x")
	s.Delta(0, `{"half":`)
	s.Start(1, "b", "y")

	if n := s.Discard(); n != 2 {
		t.Errorf("Discard() = %d, want 2", n)
	}
	if calls := s.Finish(); len(calls) != 0 {
		t.Errorf("Finish() after Discard returned %v", calls)
	}
	if s.Delta(0, "}") {
		t.Error("Delta after Discard returned true")
	}
}

func TestToolCallSet_Complete(t *testing.T) {
	s := NewToolCallSet()
	a := s.Complete("", "search", nil)
	b := s.Complete("", "search", map[string]any{"q": "go"})

	if a.ID == b.ID {
		t.Errorf("Complete produced duplicate id %q", a.ID)
	}
	if a.Arguments == nil {
		t.Error("nil arguments not replaced with empty map")
	}
	if b.Arguments["q"] != "go" {
		t.Errorf("Arguments = %v", b.Arguments)
	}
}
