package sparql

import "github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"

// Evaluate answers q against an in-memory graph. Subjects are visited in order
// of first appearance; a variable with several values yields one solution per
// combination.
func Evaluate(q Select, g rdf.Graph) Results {
	values := make(map[rdf.Term]map[string][]rdf.Term)
	for _, t := range g {
		if !t.Predicate.IsIRI() {
			continue
		}
		byPredicate, ok := values[t.Subject]
		if !ok {
			byPredicate = make(map[string][]rdf.Term)
			values[t.Subject] = byPredicate
		}
		byPredicate[t.Predicate.Value] = append(byPredicate[t.Predicate.Value], t.Object)
	}

	results := Results{Vars: q.Vars}
	for _, subject := range g.Subjects() {
		solutions := []Binding{{q.SubjectVar: subject}}
		byPredicate := values[subject]
		for _, p := range q.Patterns {
			objects := byPredicate[p.Predicate]
			if p.IsBound() {
				if !containsTerm(objects, p.Object) {
					solutions = nil
					break
				}
				continue
			}
			solutions = extend(solutions, p.Var, objects)
			if len(solutions) == 0 {
				break
			}
		}
		for _, s := range solutions {
			results.Bindings = append(results.Bindings, s.Project(q.Vars))
			if q.Limit > 0 && len(results.Bindings) >= q.Limit {
				return results
			}
		}
	}
	return results
}

func containsTerm(terms []rdf.Term, want rdf.Term) bool {
	for _, t := range terms {
		if t == want {
			return true
		}
	}
	return false
}

func extend(solutions []Binding, variable string, objects []rdf.Term) []Binding {
	out := make([]Binding, 0, len(solutions)*len(objects))
	for _, s := range solutions {
		for _, o := range objects {
			if bound, ok := s[variable]; ok && bound != o {
				continue
			}
			next := make(Binding, len(s)+1)
			for k, v := range s {
				next[k] = v
			}
			next[variable] = o
			out = append(out, next)
		}
	}
	return out
}

// Project keeps only the named variables; with no names it returns b unchanged.
func (b Binding) Project(vars []string) Binding {
	if len(vars) == 0 {
		return b
	}
	out := make(Binding, len(vars))
	for _, v := range vars {
		if term, ok := b[v]; ok {
			out[v] = term
		}
	}
	return out
}
