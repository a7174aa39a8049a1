package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	id   Ident
	desc string
}

func (s stubTool) Name() Ident                 { return s.id }
func (s stubTool) Description() string         { return s.desc }
func (s stubTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (s stubTool) Call(context.Context, json.RawMessage) (string, error) {
	return s.desc, nil
}

func TestIdentComponents(t *testing.T) {
	id := Ident("web.search")
	assert.Equal(t, "web", id.Toolset())
	assert.Equal(t, "search", id.Tool())
	assert.Equal(t, "web_search", id.ProviderName())
	assert.Equal(t, "", Ident("search").Toolset())
}

func TestSetLookupAndWithout(t *testing.T) {
	s := NewSet(stubTool{id: "web.search"}, nil, stubTool{id: "web.crawl"})
	require.Equal(t, 2, s.Len())

	got, ok := s.Lookup("web_crawl")
	require.True(t, ok)
	assert.Equal(t, Ident("web.crawl"), got.Name())

	got, ok = s.Lookup("web.search")
	require.True(t, ok)
	assert.Equal(t, Ident("web.search"), got.Name())

	trimmed := s.Without("web.crawl")
	assert.Equal(t, 1, trimmed.Len())
	_, ok = trimmed.Lookup("web_crawl")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestSetDuplicateReplaces(t *testing.T) {
	s := NewSet(stubTool{id: "web.search", desc: "a"}, stubTool{id: "web.search", desc: "b"})
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "b", s.Tools()[0].Description())
}

func TestNilSet(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Tools())
	_, ok := s.Lookup("x")
	assert.False(t, ok)
}
