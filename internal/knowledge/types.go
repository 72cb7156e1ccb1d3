package knowledge

// EdgeReceivedTreatment is the edge kind linking a subject to a
// treatment it received. The clinical outcome rides on the edge as an
// attribute.
const EdgeReceivedTreatment = "received_treatment"

// Record is one embeddable unit of knowledge. Key is the bare record
// key within its collection (see ParseRecordID).
type Record struct {
	Key       string
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// SearchResult is a k-NN hit. Similarity is cosine similarity in
// [-1, 1]; results are ordered by descending similarity.
type SearchResult struct {
	Key        string
	Text       string
	Similarity float64
}

// Annotation is one graph enrichment attached to a search hit: the
// terminal entity reached by an outbound edge plus the edge's outcome
// attribute, empty when the edge carries none.
type Annotation struct {
	Target  string `json:"target"`
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
}

// HybridResult is a k-NN hit enriched with graph traversal. The
// similarity score alone determines ranking; annotations never
// influence order. Annotations is empty, not nil, for records with no
// outbound edges.
type HybridResult struct {
	SearchResult
	Annotations []Annotation
}

// Entity is a graph node. Entities live in a namespace parallel to the
// vector collections so that a record key and an entity key can
// coincide without referring to the same row.
type Entity struct {
	Collection string
	Key        string
	Kind       string
	Attributes map[string]any
}

// CollectionInfo summarizes a collection's physical state.
type CollectionInfo struct {
	Name      string
	Records   int64
	Dimension int
}
