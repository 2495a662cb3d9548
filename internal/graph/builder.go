// Package graph records translatable phrases in a Neo4j graph linking each
// phrase to the source files and classes that use it and to its translations.
package graph

import (
	"context"
	"fmt"

	"cppmunge/internal/catalog"
	"cppmunge/internal/textutil"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// PhraseBuilder updates the Neo4j phrase graph.
type PhraseBuilder struct {
	driver neo4j.DriverWithContext
}

// NewPhraseBuilder creates a new graph builder.
func NewPhraseBuilder(driver neo4j.DriverWithContext) *PhraseBuilder {
	return &PhraseBuilder{driver: driver}
}

// EnsureSchema creates constraints on the Neo4j database.
func (pb *PhraseBuilder) EnsureSchema(ctx context.Context) error {
	session := pb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (p:Phrase) REQUIRE p.text IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (f:SourceFile) REQUIRE f.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (c:Class) REQUIRE c.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (t:Translation) REQUIRE t.id IS UNIQUE",
	}

	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Graph schema ensured")
	return nil
}

// Statement is one parameterised Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// RowStatements returns the statements that merge one catalog row into the
// graph. Quotes are stripped from literals so the graph holds plain text.
func RowStatements(row catalog.Row) []Statement {
	phrase := textutil.Unquote(row.Text)
	stmts := []Statement{{
		Cypher: `MERGE (p:Phrase {text: $text})`,
		Params: map[string]any{"text": phrase},
	}}

	if row.SrcFile != "" {
		stmts = append(stmts, Statement{
			Cypher: `
				MATCH (p:Phrase {text: $text})
				MERGE (f:SourceFile {name: $file})
				MERGE (p)-[:FOUND_IN]->(f)
			`,
			Params: map[string]any{"text": phrase, "file": textutil.Unquote(row.SrcFile)},
		})
	}
	if row.Class != "" {
		stmts = append(stmts, Statement{
			Cypher: `
				MATCH (p:Phrase {text: $text})
				MERGE (c:Class {name: $class})
				MERGE (p)-[:USED_BY]->(c)
			`,
			Params: map[string]any{"text": phrase, "class": textutil.Unquote(row.Class)},
		})
	}

	id := textutil.Hash(row.Text + "\x00" + row.SrcFile + "\x00" + row.Class + "\x00" + row.Hint + "\x00" + row.Lang)
	stmts = append(stmts, Statement{
		Cypher: `
			MATCH (p:Phrase {text: $text})
			MERGE (t:Translation {id: $id})
			SET t.lang = $lang,
			    t.text = $translation,
			    t.hint = $hint,
			    t.pending = $pending
			MERGE (p)-[:TRANSLATED_AS]->(t)
		`,
		Params: map[string]any{
			"text":        phrase,
			"id":          id,
			"lang":        row.Lang,
			"translation": textutil.Unquote(row.Translation),
			"hint":        textutil.Unquote(row.Hint),
			"pending":     row.Translation == catalog.Placeholder,
		},
	})
	return stmts
}

// UpsertRows merges catalog rows into the graph. A failing row is logged and
// skipped; the count of merged rows is returned.
func (pb *PhraseBuilder) UpsertRows(ctx context.Context, rows []catalog.Row) (int, error) {
	session := pb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	merged := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return merged, err
		}
		ok := true
		for _, st := range RowStatements(row) {
			if _, err := session.Run(ctx, st.Cypher, st.Params); err != nil {
				log.Warn().Err(err).
					Str("text", textutil.Truncate(row.Text, 30)).
					Str("lang", row.Lang).
					Msg("Failed to merge phrase")
				ok = false
				break
			}
		}
		if ok {
			merged++
		}
	}

	log.Info().Int("rows", merged).Msg("Merged phrases into graph")
	return merged, nil
}
