package router

import (
	"fmt"
	"strings"

	"github.com/searchktools/fast-host/core/http"
)

type nodeKind uint8

const (
	rootNode        nodeKind = iota
	literalNode              // users
	constrainedNode          // {id:int}
	captureNode              // {id}
	greedyNode               // {path*}
)

// Specificity scores; lower is more specific
const (
	literalScore     = 1
	constrainedScore = 500
	captureScore     = 1000
	greedyScore      = 10000
)

type endpoint struct {
	moduleKey   string
	routeIndex  int
	description RouteDescription
	order       int
}

type node struct {
	kind       nodeKind
	segment    string // definition segment
	paramName  string
	constraint Constraint

	literals    map[string]*node // lower-cased segment -> child
	constrained []*node
	capture     *node
	greedy      *node
	endpoints   []endpoint
}

// SegmentMatch is the result of testing one path segment against one node
type SegmentMatch struct {
	IsMatch  bool
	Captured http.Params
}

func newRoot() *node {
	return &node{kind: rootNode}
}

func (n *node) score() int {
	switch n.kind {
	case literalNode:
		return literalScore
	case constrainedNode:
		return constrainedScore
	case captureNode:
		return captureScore
	case greedyNode:
		return greedyScore
	}
	return 0
}

// newNode parses a definition segment into a node
func newNode(segment string) *node {
	if !strings.HasPrefix(segment, "{") {
		if strings.ContainsAny(segment, "{}") {
			panic(fmt.Sprintf("capture %q must span the whole path segment", segment))
		}
		return &node{kind: literalNode, segment: segment}
	}
	if !strings.HasSuffix(segment, "}") || strings.Count(segment, "{") != 1 {
		panic(fmt.Sprintf("malformed capture segment %q", segment))
	}

	inner := segment[1 : len(segment)-1]
	n := &node{segment: segment}
	switch {
	case strings.HasSuffix(inner, "*"):
		n.kind = greedyNode
		n.paramName = strings.TrimSuffix(inner, "*")
	case strings.Contains(inner, ":"):
		name, text, _ := strings.Cut(inner, ":")
		c, err := parseConstraint(text)
		if err != nil {
			panic(fmt.Sprintf("segment %q: %v", segment, err))
		}
		n.kind = constrainedNode
		n.paramName = name
		n.constraint = c
	default:
		n.kind = captureNode
		n.paramName = inner
	}
	if n.paramName == "" {
		panic(fmt.Sprintf("captures must be named: %q", segment))
	}
	return n
}

// Match tests a single path segment against this node
func (n *node) Match(segment string) SegmentMatch {
	switch n.kind {
	case literalNode:
		return SegmentMatch{IsMatch: strings.EqualFold(n.segment, segment)}
	case constrainedNode:
		if !n.constraint.Match(segment) {
			return SegmentMatch{}
		}
	case captureNode, greedyNode:
	default:
		return SegmentMatch{}
	}
	return SegmentMatch{IsMatch: true, Captured: http.Params{n.paramName: segment}}
}

// add inserts a route along segments, creating nodes as needed
func (n *node) add(segments []string, ep endpoint) {
	if len(segments) == 0 {
		n.endpoints = append(n.endpoints, ep)
		return
	}

	child := newNode(segments[0])
	switch child.kind {
	case literalNode:
		key := strings.ToLower(child.segment)
		if existing, ok := n.literals[key]; ok {
			child = existing
		} else {
			if n.literals == nil {
				n.literals = make(map[string]*node)
			}
			n.literals[key] = child
		}

	case constrainedNode:
		found := false
		for _, c := range n.constrained {
			if c.segment == child.segment {
				child, found = c, true
				break
			}
		}
		if !found {
			n.constrained = append(n.constrained, child)
		}

	case captureNode:
		if n.capture != nil {
			if n.capture.paramName != child.paramName {
				panic(fmt.Sprintf("capture %q conflicts with existing capture %q in %s",
					child.segment, n.capture.segment, ep.description.Path))
			}
			child = n.capture
		} else {
			n.capture = child
		}

	case greedyNode:
		if len(segments) > 1 {
			panic("greedy captures are only allowed at the end of the path")
		}
		if n.greedy != nil {
			if n.greedy.paramName != child.paramName {
				panic(fmt.Sprintf("greedy capture %q conflicts with existing capture %q in %s",
					child.segment, n.greedy.segment, ep.description.Path))
			}
			child = n.greedy
		} else {
			n.greedy = child
		}
	}

	child.add(segments[1:], ep)
}

// candidate is a match before guard evaluation
type candidate struct {
	endpoint endpoint
	params   http.Params
	scores   []int
}

// matches walks the remaining segments depth first: literal, constrained,
// capture, then greedy. Every reachable terminal is collected.
func (n *node) matches(segments []string, params http.Params, scores []int, out []candidate) []candidate {
	if len(segments) == 0 {
		for _, ep := range n.endpoints {
			out = append(out, candidate{
				endpoint: ep,
				params:   params.Clone(),
				scores:   append([]int(nil), scores...),
			})
		}
		return out
	}

	segment := segments[0]
	rest := segments[1:]

	if child, ok := n.literals[strings.ToLower(segment)]; ok {
		out = child.matches(rest, params, append(scores, literalScore), out)
	}

	for _, child := range n.constrained {
		out = child.descend(segment, rest, params, scores, out)
	}

	if n.capture != nil {
		out = n.capture.descend(segment, rest, params, scores, out)
	}

	if n.greedy != nil && len(n.greedy.endpoints) > 0 {
		captured := params.Clone()
		captured[n.greedy.paramName] = strings.Join(segments, "/")
		out = n.greedy.matches(nil, captured, append(scores, greedyScore), out)
	}

	return out
}

// descend matches segment against a capture child and continues below it.
// Captures are written to a copy so sibling branches never see them.
func (n *node) descend(segment string, rest []string, params http.Params, scores []int, out []candidate) []candidate {
	m := n.Match(segment)
	if !m.IsMatch {
		return out
	}
	next := params.Clone()
	for k, v := range m.Captured {
		next[k] = v
	}
	return n.matches(rest, next, append(scores, n.score()), out)
}
