// Package tools defines the contract between agent runners and the
// capabilities (web search, page fetch) exposed to models during a run.
package tools

import (
	"context"
	"encoding/json"
)

type (
	// Tool is a capability a model may invoke while producing a structured result.
	Tool interface {
		// Name is the identifier presented to the model.
		Name() Ident
		// Description documents the tool for prompting purposes.
		Description() string
		// InputSchema is the JSON Schema object describing the tool arguments.
		InputSchema() map[string]any
		// Call executes the tool with the JSON arguments produced by the model and
		// returns the text fed back to the model.
		Call(ctx context.Context, input json.RawMessage) (string, error)
	}

	// Set is an ordered collection of tools keyed by provider name.
	Set struct {
		order []Tool
		byKey map[string]Tool
	}
)

// NewSet builds a Set from the given tools. Nil tools are skipped; later tools
// with a duplicate name replace earlier ones.
func NewSet(ts ...Tool) *Set {
	s := &Set{byKey: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if t == nil {
			continue
		}
		key := t.Name().ProviderName()
		if _, ok := s.byKey[key]; !ok {
			s.order = append(s.order, t)
		} else {
			for i, o := range s.order {
				if o.Name().ProviderName() == key {
					s.order[i] = t
				}
			}
		}
		s.byKey[key] = t
	}
	return s
}

// Tools returns the tools in registration order.
func (s *Set) Tools() []Tool {
	if s == nil {
		return nil
	}
	return s.order
}

// Lookup returns the tool registered under the given provider name or ident.
func (s *Set) Lookup(name string) (Tool, bool) {
	if s == nil {
		return nil, false
	}
	if t, ok := s.byKey[name]; ok {
		return t, true
	}
	t, ok := s.byKey[Ident(name).ProviderName()]
	return t, ok
}

// Len returns the number of tools in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Without returns a copy of the set excluding the tools with the given idents.
func (s *Set) Without(ids ...Ident) *Set {
	skip := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		skip[id.ProviderName()] = struct{}{}
	}
	var kept []Tool
	for _, t := range s.Tools() {
		if _, ok := skip[t.Name().ProviderName()]; ok {
			continue
		}
		kept = append(kept, t)
	}
	return NewSet(kept...)
}
