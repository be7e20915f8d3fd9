package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name   string
	domain string
}

func (f fakeAdapter) Name() string   { return f.name }
func (f fakeAdapter) Domain() string { return f.domain }
func (f fakeAdapter) Locate(context.Context, LocateRequest) ([]Candidate, error) {
	return nil, ErrNoTrailers
}

func newTestRegistry() *Registry {
	return NewRegistry(
		fakeAdapter{name: "APPLE_TV", domain: "tv.apple.com"},
		fakeAdapter{name: "NETFLIX", domain: "www.netflix.com"},
	)
}

func TestRegistryGet(t *testing.T) {
	r := newTestRegistry()

	a, ok := r.Get("NETFLIX")
	require.True(t, ok)
	assert.Equal(t, "www.netflix.com", a.Domain())

	_, ok = r.Get("DISNEY")
	assert.False(t, ok)
}

func TestRegistryForPage(t *testing.T) {
	r := newTestRegistry()

	a, ok := r.ForPage("https://www.netflix.com/title/81223025")
	require.True(t, ok)
	assert.Equal(t, "NETFLIX", a.Name())

	_, ok = r.ForPage("https://www.youtube.com/watch?v=x")
	assert.False(t, ok)
}

func TestRegistryNamesAndDomains(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, []string{"APPLE_TV", "NETFLIX"}, r.Names())
	assert.Equal(t, []string{"tv.apple.com", "www.netflix.com"}, r.Domains())
}
