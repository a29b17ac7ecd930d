// Package memory is an in-process triple store used by the CLI, local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
)

type quad struct {
	graph  string
	triple rdf.Triple
}

type Store struct {
	mu    sync.RWMutex
	quads []quad
	seen  map[quad]struct{}
}

func NewStore() *Store {
	return &Store{seen: make(map[quad]struct{})}
}

// Update applies all operations atomically with respect to concurrent readers.
func (s *Store) Update(ctx context.Context, update sparql.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range update.Operations {
		for _, t := range op.Triples {
			q := quad{graph: op.Graph, triple: t}
			if _, ok := s.seen[q]; ok {
				continue
			}
			s.seen[q] = struct{}{}
			s.quads = append(s.quads, q)
		}
	}
	return nil
}

// Select evaluates the query over the named graph, or over the union of all
// graphs when the query names none.
func (s *Store) Select(ctx context.Context, query sparql.Select) (sparql.Results, error) {
	if err := ctx.Err(); err != nil {
		return sparql.Results{}, err
	}
	return sparql.Evaluate(query, s.Triples(query.Graph)), nil
}

// Triples returns a copy of the triples in graph; an empty name selects all graphs.
func (s *Store) Triples(graph string) rdf.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(rdf.Graph, 0, len(s.quads))
	for _, q := range s.quads {
		if graph == "" || q.graph == graph {
			out = append(out, q.triple)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quads)
}

func (s *Store) Ping(context.Context) error {
	return nil
}
