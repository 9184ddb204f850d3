package router

import (
	"sort"
	"strings"

	"github.com/searchktools/fast-host/core/http"
)

// MatchResult is one route reachable for a request path
type MatchResult struct {
	Description RouteDescription
	ModuleKey   string
	RouteIndex  int
	Params      http.Params
	Score       int
}

// Trie indexes route descriptions, one segment tree per method.
// It is built once and read-only afterwards, so lookups take no locks.
type Trie struct {
	roots map[string]*node
	count int
}

// NewTrie creates an empty trie
func NewTrie() *Trie {
	return &Trie{roots: make(map[string]*node)}
}

// Build indexes every route in the cache. Calling it twice adds duplicates.
func (t *Trie) Build(cache RouteCache) {
	for _, entry := range cache {
		for _, r := range entry.Routes {
			root, ok := t.roots[r.Description.Method]
			if !ok {
				root = newRoot()
				t.roots[r.Description.Method] = root
			}
			root.add(r.Description.Segments, endpoint{
				moduleKey:   entry.ModuleKey,
				routeIndex:  r.Index,
				description: r.Description,
				order:       t.count,
			})
			t.count++
		}
	}
}

// Matches returns the guard-passing routes for method and path, most specific first.
// The result is never nil.
func (t *Trie) Matches(method, path string, c *http.Context) []MatchResult {
	results := []MatchResult{}
	if path == "" {
		return results
	}
	root, ok := t.roots[strings.ToUpper(method)]
	if !ok {
		return results
	}

	candidates := root.matches(splitPath(path), http.Params{}, nil, nil)
	sort.SliceStable(candidates, func(i, j int) bool {
		return lessCandidate(candidates[i], candidates[j])
	})

	for _, cand := range candidates {
		desc := cand.endpoint.description
		if desc.Condition != nil && !desc.Condition(c) {
			continue
		}
		results = append(results, MatchResult{
			Description: desc,
			ModuleKey:   cand.endpoint.moduleKey,
			RouteIndex:  cand.endpoint.routeIndex,
			Params:      cand.params,
			Score:       sum(cand.scores),
		})
	}
	return results
}

// Options returns the sorted methods with at least one match for path
func (t *Trie) Options(path string, c *http.Context) []string {
	methods := []string{}
	for method := range t.roots {
		if len(t.Matches(method, path, c)) > 0 {
			methods = append(methods, method)
		}
	}
	sort.Strings(methods)
	return methods
}

// Methods returns the methods that have at least one route
func (t *Trie) Methods() []string {
	methods := make([]string, 0, len(t.roots))
	for method := range t.roots {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

// lessCandidate orders by segment scores left to right, then total score,
// then registration order.
func lessCandidate(a, b candidate) bool {
	for i := 0; i < len(a.scores) && i < len(b.scores); i++ {
		if a.scores[i] != b.scores[i] {
			return a.scores[i] < b.scores[i]
		}
	}
	if sa, sb := sum(a.scores), sum(b.scores); sa != sb {
		return sa < sb
	}
	return a.endpoint.order < b.endpoint.order
}

func sum(scores []int) int {
	total := 0
	for _, s := range scores {
		total += s
	}
	return total
}
