package ingest

import (
	"context"
	"fmt"

	"github.com/pathwise/pathwise/internal/knowledge"
)

// EdgeReceivedTreatment aliases the store-level edge kind so callers
// of the pipeline do not need to import knowledge for it.
const EdgeReceivedTreatment = knowledge.EdgeReceivedTreatment

// Entity kinds used in the pathway graph.
const (
	KindSubject   = "subject"
	KindTreatment = "treatment"
)

// Subject is a clinical case whose summary gets embedded for
// similarity search.
type Subject struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// Treatment is a graph-only node; it is never embedded.
type Treatment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TreatmentRecord links a subject to a treatment it received and the
// observed outcome.
type TreatmentRecord struct {
	Subject   string `json:"subject"`
	Treatment string `json:"treatment"`
	Outcome   string `json:"outcome"`
}

// PathwayData is a complete treatment-pathway dataset.
type PathwayData struct {
	Subjects   []Subject         `json:"subjects"`
	Treatments []Treatment       `json:"treatments"`
	Records    []TreatmentRecord `json:"records"`
}

// SeedPathways populates a collection with subject summaries and the
// treatment graph around them: subject vectors for similarity search,
// subject and treatment entities, and received_treatment edges
// carrying each outcome. Entities are created before edges so the
// endpoint constraint holds throughout.
//
// Unlike Seed, pathway seeding is all-or-nothing per step: a subject
// whose entity is missing would strand its edges, so the first error
// aborts the run.
func (p *Pipeline) SeedPathways(ctx context.Context, graph GraphStore, collection string, data PathwayData) (*Report, error) {
	sources := make([]SourceRecord, len(data.Subjects))
	for i, s := range data.Subjects {
		if s.Summary == "" {
			return nil, fmt.Errorf("subject %q has no summary", s.ID)
		}
		sources[i] = SourceRecord{ID: s.ID, Text: s.Summary}
	}

	report, err := p.Seed(ctx, collection, sources)
	if err != nil {
		return report, err
	}
	if !report.Ok() {
		return report, fmt.Errorf("seeding subject vectors: %s", report.Failures[0].String())
	}

	for _, s := range data.Subjects {
		id := knowledge.ParseRecordID(collection, s.ID)
		if err := graph.CreateEntity(ctx, knowledge.Entity{
			Collection: collection,
			Key:        id.Key,
			Kind:       KindSubject,
		}); err != nil {
			return report, fmt.Errorf("creating subject entity %s: %w", id, err)
		}
	}
	for _, t := range data.Treatments {
		id := knowledge.ParseRecordID(collection, t.ID)
		if err := graph.CreateEntity(ctx, knowledge.Entity{
			Collection: collection,
			Key:        id.Key,
			Kind:       KindTreatment,
			Attributes: map[string]any{"name": t.Name},
		}); err != nil {
			return report, fmt.Errorf("creating treatment entity %s: %w", id, err)
		}
	}

	for _, rec := range data.Records {
		from := knowledge.ParseRecordID(collection, rec.Subject)
		to := knowledge.ParseRecordID(collection, rec.Treatment)
		outcome := knowledge.ParseRecordID(collection, rec.Outcome).Key
		if err := graph.Relate(ctx, from, EdgeReceivedTreatment, to,
			map[string]any{"outcome": outcome}); err != nil {
			return report, fmt.Errorf("relating %s to %s: %w", from, to, err)
		}
	}

	p.logger.Info("pathway graph seeded",
		"collection", collection,
		"subjects", len(data.Subjects),
		"treatments", len(data.Treatments),
		"edges", len(data.Records))
	return report, nil
}
