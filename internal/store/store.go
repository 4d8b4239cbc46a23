// Package store provides a graph store whose vertex attributes can be updated after insertion.
package store

import (
	"maps"
	"slices"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
)

// AttributeStore is a graph.Store that also lets callers annotate existing vertices.
type AttributeStore[K comparable, T any] interface {
	graph.Store[K, T]
	// SetVertexAttributes merges attributes into the attributes of vertex k.
	SetVertexAttributes(k K, attributes map[string]string) error
}

var ErrAppendOnly = errors.New("store is append only")

// MemoryStore keeps the graph in memory. Vertices and edges can be added, never removed
// or replaced. Vertex properties handed out are copies.
type MemoryStore[K comparable, T any] struct {
	lock             sync.RWMutex
	vertices         map[K]T
	vertexProperties map[K]*graph.VertexProperties
	edges            map[K]map[K]graph.Edge[K] // source -> target
}

// NewMemoryStore creates an empty store.
func NewMemoryStore[K comparable, T any]() *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		vertices:         make(map[K]T),
		vertexProperties: make(map[K]*graph.VertexProperties),
		edges:            make(map[K]map[K]graph.Edge[K]),
	}
}

func (s *MemoryStore[K, T]) AddVertex(k K, t T, p graph.VertexProperties) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.vertices[k]; ok {
		return graph.ErrVertexAlreadyExists
	}

	p.Attributes = maps.Clone(p.Attributes)
	if p.Attributes == nil {
		p.Attributes = make(map[string]string)
	}
	s.vertices[k] = t
	s.vertexProperties[k] = &p

	return nil
}

func (s *MemoryStore[K, T]) ListVertices() ([]K, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return slices.Collect(maps.Keys(s.vertices)), nil
}

func (s *MemoryStore[K, T]) VertexCount() (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.vertices), nil
}

func (s *MemoryStore[K, T]) Vertex(k K) (T, graph.VertexProperties, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.vertices[k]
	if !ok {
		return v, graph.VertexProperties{}, graph.ErrVertexNotFound
	}

	p := *s.vertexProperties[k]
	p.Attributes = maps.Clone(p.Attributes)

	return v, p, nil
}

func (s *MemoryStore[K, T]) SetVertexAttributes(k K, attributes map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	p, ok := s.vertexProperties[k]
	if !ok {
		return graph.ErrVertexNotFound
	}
	maps.Copy(p.Attributes, attributes)

	return nil
}

func (s *MemoryStore[K, T]) AddEdge(sourceHash, targetHash K, edge graph.Edge[K]) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.edges[sourceHash]; !ok {
		s.edges[sourceHash] = make(map[K]graph.Edge[K])
	}
	s.edges[sourceHash][targetHash] = edge

	return nil
}

func (s *MemoryStore[K, T]) Edge(sourceHash, targetHash K) (graph.Edge[K], error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	edge, ok := s.edges[sourceHash][targetHash]
	if !ok {
		return graph.Edge[K]{}, graph.ErrEdgeNotFound
	}

	return edge, nil
}

func (s *MemoryStore[K, T]) ListEdges() ([]graph.Edge[K], error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	res := make([]graph.Edge[K], 0)
	for _, edges := range s.edges {
		for _, edge := range edges {
			res = append(res, edge)
		}
	}

	return res, nil
}

func (s *MemoryStore[K, T]) RemoveVertex(K) error {
	return ErrAppendOnly
}

func (s *MemoryStore[K, T]) UpdateEdge(K, K, graph.Edge[K]) error {
	return ErrAppendOnly
}

func (s *MemoryStore[K, T]) RemoveEdge(K, K) error {
	return ErrAppendOnly
}

var _ AttributeStore[string, string] = (*MemoryStore[string, string])(nil)
