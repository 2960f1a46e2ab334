package pagegraph

import (
	"sync"
)

// Graph is the ordered, deduplicated collection of page artifacts produced by
// a single crawl. Classified types are unique keys; unclassified pages are
// keyed by normalized URL. Writes are serialized; after the crawl completes
// the graph is read-only by convention.
type Graph struct {
	mu        sync.RWMutex
	byType    map[PageType]*PageArtifact
	byURL     map[string]*PageArtifact
	canonical map[string]string // canonical URL -> requested URL that claimed it
	order     []*PageArtifact
	meta      Metadata
}

// NewGraph creates an empty page graph.
func NewGraph() *Graph {
	return &Graph{
		byType:    make(map[PageType]*PageArtifact),
		byURL:     make(map[string]*PageArtifact),
		canonical: make(map[string]string),
	}
}

// AddPage inserts an artifact under the given normalized URL key.
// Insertion rules, in order:
//   - a duplicate canonical URL from a different requested URL is rejected
//   - for a classified type already present, higher confidence wins;
//     a 200-status artifact always wins over an error artifact;
//     ties keep the first-seen artifact
//
// Returns true when the artifact was stored (possibly replacing another).
func (g *Graph) AddPage(normURL string, a *PageArtifact) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if a.CanonicalURL != "" {
		if claimed, ok := g.canonical[a.CanonicalURL]; ok && claimed != normURL {
			return false
		}
	}

	if a.Type != PageOther && a.Type != PageSkip {
		if existing, ok := g.byType[a.Type]; ok {
			if !g.shouldReplace(existing, a) {
				// Keep the losing artifact reachable by URL so evidence like
				// visited-URL lists stays complete.
				if _, seen := g.byURL[normURL]; !seen {
					g.byURL[normURL] = a
					g.order = append(g.order, a)
				}
				return false
			}
			g.replaceInOrder(existing, a)
			g.byType[a.Type] = a
			g.byURL[normURL] = a
			g.claimCanonical(normURL, a)
			return true
		}
		g.byType[a.Type] = a
	} else if _, seen := g.byURL[normURL]; seen {
		return false
	}

	g.byURL[normURL] = a
	g.order = append(g.order, a)
	g.claimCanonical(normURL, a)
	return true
}

func (g *Graph) claimCanonical(normURL string, a *PageArtifact) {
	if a.CanonicalURL != "" {
		g.canonical[a.CanonicalURL] = normURL
	}
}

func (g *Graph) shouldReplace(existing, candidate *PageArtifact) bool {
	if existing.OK() != candidate.OK() {
		return candidate.OK()
	}
	return candidate.Confidence > existing.Confidence
}

func (g *Graph) replaceInOrder(old, new_ *PageArtifact) {
	for i, a := range g.order {
		if a == old {
			g.order[i] = new_
			return
		}
	}
	g.order = append(g.order, new_)
}

// Get returns the artifact stored for a classified page type.
func (g *Graph) Get(pt PageType) (*PageArtifact, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.byType[pt]
	return a, ok
}

// Home returns the home page artifact. Every well-formed graph has one.
func (g *Graph) Home() (*PageArtifact, bool) {
	return g.Get(PageHome)
}

// ByURL returns the artifact stored for a normalized URL.
func (g *Graph) ByURL(normURL string) (*PageArtifact, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.byURL[normURL]
	return a, ok
}

// Has reports whether a classified type is present with at least the given
// confidence and a successful fetch.
func (g *Graph) Has(pt PageType, minConfidence float64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.byType[pt]
	return ok && a.OK() && a.Confidence >= minConfidence
}

// Pages returns all artifacts in insertion order.
func (g *Graph) Pages() []*PageArtifact {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*PageArtifact, len(g.order))
	copy(out, g.order)
	return out
}

// FetchedPages returns only artifacts with a successful response.
func (g *Graph) FetchedPages() []*PageArtifact {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*PageArtifact
	for _, a := range g.order {
		if a.OK() {
			out = append(out, a)
		}
	}
	return out
}

// URLs returns the final URL of every artifact, in insertion order.
func (g *Graph) URLs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.order))
	for _, a := range g.order {
		u := a.FinalURL
		if u == "" {
			u = a.RequestedURL
		}
		out = append(out, u)
	}
	return out
}

// Len returns the number of artifacts in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// EarlyExitSatisfied reports whether the early-exit policy holds: all
// required page types present with confidence >= 0.7 and at least one
// high-value type fetched.
func (g *Graph) EarlyExitSatisfied() bool {
	for _, pt := range RequiredPageTypes {
		if !g.Has(pt, 0.7) {
			return false
		}
	}
	for _, pt := range HighValuePageTypes {
		if g.Has(pt, 0) {
			return true
		}
	}
	return false
}

// RecordError appends a classified error to the crawl metadata.
func (g *Graph) RecordError(e CrawlError) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.meta.Errors = append(g.meta.Errors, e)
}

// SetMetadata stores the crawl summary. Error entries recorded earlier are
// preserved.
func (g *Graph) SetMetadata(m Metadata) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m.Errors = append(g.meta.Errors, m.Errors...)
	g.meta = m
}

// Meta returns a copy of the crawl metadata.
func (g *Graph) Meta() Metadata {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.meta
}
