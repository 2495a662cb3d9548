package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// FileStats summarises the phrases of one source file.
type FileStats struct {
	File    string
	Phrases int64
	Pending int64
}

// PhraseQuerier reads the phrase graph.
type PhraseQuerier struct {
	driver neo4j.DriverWithContext
}

// NewPhraseQuerier creates a new graph querier.
func NewPhraseQuerier(driver neo4j.DriverWithContext) *PhraseQuerier {
	return &PhraseQuerier{driver: driver}
}

// PendingByFile counts phrases and untranslated placeholders per source file.
func (pq *PhraseQuerier) PendingByFile(ctx context.Context) ([]FileStats, error) {
	session := pq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (p:Phrase)-[:FOUND_IN]->(f:SourceFile)
		OPTIONAL MATCH (p)-[:TRANSLATED_AS]->(t:Translation {pending: true})
		RETURN f.name AS file, count(DISTINCT p) AS phrases, count(t) AS pending
		ORDER BY pending DESC, file
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("query pending phrases: %w", err)
	}

	var stats []FileStats
	for result.Next(ctx) {
		record := result.Record()
		file, _ := record.Get("file")
		phrases, _ := record.Get("phrases")
		pending, _ := record.Get("pending")

		s := FileStats{File: fmt.Sprintf("%v", file)}
		s.Phrases, _ = phrases.(int64)
		s.Pending, _ = pending.(int64)
		stats = append(stats, s)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read pending phrases: %w", err)
	}

	log.Debug().Int("files", len(stats)).Msg("Graph query complete")
	return stats, nil
}
