// Package services defines the contract every streaming-platform adapter
// implements and the registry used to resolve them by name or domain.
package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNoTrailers is the expected outcome when a platform simply has no
// trailer for a title. Adapters return it instead of a transport error so
// the orchestrator can tell "nothing there" apart from "something broke".
var ErrNoTrailers = errors.New("no trailers found")

// ServiceNameAll requests a fan-out across every registered adapter.
const ServiceNameAll = "ALL"

// LocateRequest carries everything an adapter needs for one lookup.
type LocateRequest struct {
	Name            string
	Year            int
	TrailerPage     string
	Lang            string
	FullAudioTracks bool

	// OutDir is where finished trailer files must be written.
	OutDir string

	// OnTrailerFound is invoked at most once, with the canonical trailer
	// page URL, before any download starts. It lets the caller persist
	// partial progress even when the download later fails.
	OnTrailerFound func(pageURL string)
}

// SubtitleFile is one downloaded caption track.
type SubtitleFile struct {
	Path     string
	Language string
}

// Candidate is one finished trailer file an adapter produced.
type Candidate struct {
	Title     string
	Path      string
	Subtitles []SubtitleFile
}

// Adapter locates and downloads trailers from one streaming platform.
type Adapter interface {
	// Name is the stable identifier used in API requests, e.g. "APPLE_TV".
	Name() string
	// Domain is the site host this adapter handles, e.g. "tv.apple.com".
	Domain() string
	// Locate resolves a trailer page, downloads the trailers it references
	// and returns them. It returns ErrNoTrailers when the platform has
	// nothing for the title.
	Locate(ctx context.Context, req LocateRequest) ([]Candidate, error)
}

// Registry holds the adapters enabled for this deployment, in a stable order.
type Registry struct {
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// All returns every registered adapter.
func (r *Registry) All() []Adapter {
	return r.adapters
}

// Names returns the registered adapter names, in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Domains returns the registered adapter domains, in registration order.
func (r *Registry) Domains() []string {
	domains := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		domains = append(domains, a.Domain())
	}
	return domains
}

// Get returns the adapter with the given name.
func (r *Registry) Get(name string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// ForPage returns the adapter whose domain matches the page URL's host.
func (r *Registry) ForPage(pageURL string) (Adapter, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, false
	}
	for _, a := range r.adapters {
		if strings.Contains(u.Hostname(), a.Domain()) {
			return a, true
		}
	}
	return nil, false
}
