// Package postgres keeps triples in a single relational table so the service
// can run against PostgreSQL where no SPARQL endpoint is available.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
)

const schemaLockID int64 = 2026101901

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS rdf_triples (
	graph TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object_kind TEXT NOT NULL,
	object_value TEXT NOT NULL,
	object_datatype TEXT NOT NULL DEFAULT '',
	object_lang TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (graph, subject, predicate, object_kind, object_value, object_datatype, object_lang)
);

CREATE INDEX IF NOT EXISTS idx_rdf_triples_predicate_object ON rdf_triples(predicate, object_value);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Update applies every operation of the request in one transaction.
// Re-inserting an existing triple is a no-op, matching RDF set semantics.
func (s *Store) Update(ctx context.Context, update sparql.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, op := range update.Operations {
		for _, t := range op.Triples {
			obj := normalize(t.Object)
			_, err := tx.ExecContext(ctx, `
INSERT INTO rdf_triples (graph, subject, predicate, object_kind, object_value, object_datatype, object_lang)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT DO NOTHING
`, op.Graph, t.Subject.Value, t.Predicate.Value, obj.Kind.String(), obj.Value, obj.Datatype, obj.Lang)
			if err != nil {
				return fmt.Errorf("insert triple: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update tx: %w", err)
	}
	return nil
}

// Select answers the query with one self-join per pattern, all anchored on
// the subject of the first pattern.
func (s *Store) Select(ctx context.Context, query sparql.Select) (sparql.Results, error) {
	stmt, args, err := buildSelect(query)
	if err != nil {
		return sparql.Results{}, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return sparql.Results{}, fmt.Errorf("query triples: %w", err)
	}
	defer rows.Close()

	out := sparql.Results{Vars: query.Vars}
	for rows.Next() {
		var subject string
		cols := make([]objectColumns, 0, len(query.Patterns))
		dest := []any{&subject}
		for _, p := range query.Patterns {
			if p.IsBound() {
				continue
			}
			cols = append(cols, objectColumns{variable: p.Var})
		}
		for i := range cols {
			dest = append(dest, &cols[i].kind, &cols[i].value, &cols[i].datatype, &cols[i].lang)
		}
		if err := rows.Scan(dest...); err != nil {
			return sparql.Results{}, fmt.Errorf("scan triple row: %w", err)
		}

		binding := sparql.Binding{query.SubjectVar: rdf.IRI(subject)}
		for _, c := range cols {
			binding[c.variable] = c.term()
		}
		out.Bindings = append(out.Bindings, binding.Project(query.Vars))
	}
	if err := rows.Err(); err != nil {
		return sparql.Results{}, fmt.Errorf("iterate triple rows: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func buildSelect(q sparql.Select) (string, []any, error) {
	if len(q.Patterns) == 0 {
		return "", nil, fmt.Errorf("select without patterns")
	}

	var (
		columns = []string{"t0.subject"}
		from    strings.Builder
		where   []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	from.WriteString("FROM rdf_triples t0")
	for i, p := range q.Patterns {
		alias := "t" + strconv.Itoa(i)
		if i > 0 {
			fmt.Fprintf(&from, "\nJOIN rdf_triples %s ON %s.subject = t0.subject", alias, alias)
		}
		where = append(where, alias+".predicate = "+arg(p.Predicate))
		if q.Graph != "" {
			where = append(where, alias+".graph = "+arg(q.Graph))
		}
		if p.IsBound() {
			obj := normalize(p.Object)
			where = append(where,
				alias+".object_kind = "+arg(obj.Kind.String()),
				alias+".object_value = "+arg(obj.Value),
				alias+".object_datatype = "+arg(obj.Datatype),
				alias+".object_lang = "+arg(obj.Lang),
			)
			continue
		}
		columns = append(columns,
			alias+".object_kind", alias+".object_value", alias+".object_datatype", alias+".object_lang")
	}

	stmt := "SELECT " + strings.Join(columns, ", ") + "\n" + from.String() +
		"\nWHERE " + strings.Join(where, "\n  AND ")
	if q.Limit > 0 {
		stmt += "\nLIMIT " + strconv.Itoa(q.Limit)
	}
	return stmt, args, nil
}

type objectColumns struct {
	variable string
	kind     string
	value    string
	datatype string
	lang     string
}

func (c objectColumns) term() rdf.Term {
	switch c.kind {
	case rdf.KindIRI.String():
		return rdf.IRI(c.value)
	case rdf.KindBlank.String():
		return rdf.Blank(c.value)
	default:
		if c.lang != "" {
			return rdf.LangLiteral(c.value, c.lang)
		}
		return rdf.TypedLiteral(c.value, c.datatype)
	}
}

// normalize drops the implicit xsd:string datatype so "a" and "a"^^xsd:string
// are stored and matched as the same literal.
func normalize(t rdf.Term) rdf.Term {
	if t.Datatype == rdf.XSDString {
		t.Datatype = ""
	}
	return t
}
