package domain

// CourtLevel identifies the court that issued a decision.
type CourtLevel string

const (
	CourtAAD                   CourtLevel = "aad"
	CourtSupreme               CourtLevel = "supreme"
	CourtOfAppeal              CourtLevel = "courtOfAppeal"
	CourtSupremeAdministrative CourtLevel = "supremeAdministrative"
	CourtAdministrative        CourtLevel = "administrative"
	CourtAdministrativeIP      CourtLevel = "administrativeIP"
	CourtDistrict              CourtLevel = "epa"
	CourtCompetition           CourtLevel = "aap"
	CourtAdminAppeal           CourtLevel = "dioikitiko"
)

// KnownCourtLevels lists every court id the indices carry.
var KnownCourtLevels = []CourtLevel{
	CourtAAD, CourtSupreme, CourtOfAppeal, CourtSupremeAdministrative,
	CourtAdministrative, CourtAdministrativeIP, CourtDistrict,
	CourtCompetition, CourtAdminAppeal,
}

// Valid reports whether the court level is a known id. The empty value is
// valid and means "no filter".
func (c CourtLevel) Valid() bool {
	if c == "" {
		return true
	}
	for _, known := range KnownCourtLevels {
		if c == known {
			return true
		}
	}
	return false
}

// Query is a single search request against the indices. Immutable once issued.
type Query struct {
	Text     string
	Court    CourtLevel // empty = all courts
	YearFrom int        // 0 = unbounded
	YearTo   int        // 0 = unbounded
}

// CandidateDocument is a document-level search candidate accumulated over a
// session. Score fields are populated in pipeline order (dense -> fused ->
// rerank); a populated field is only ever replaced by a higher value from the
// same signal, never overwritten by a lower-confidence source.
type CandidateDocument struct {
	DocID string
	Title string
	Court CourtLevel
	Year  int

	// Snippet is the best-matching chunk text seen so far, used as a
	// fallback preview when the full document cannot be fetched.
	Snippet string

	DenseScore  float64 // cosine similarity of the best-matching chunk
	LexicalRank int     // 1-based rank in the lexical list, 0 = not surfaced lexically
	FusedScore  float64 // reciprocal rank fusion score
	RerankScore float64 // two-tier reranker score, 0 = not reranked

	Kept bool
}

// EffectiveScore is the most trusted relevance signal currently available:
// the rerank score when present, otherwise the dense similarity.
func (c *CandidateDocument) EffectiveScore() float64 {
	if c.RerankScore > 0 {
		return c.RerankScore
	}
	return c.DenseScore
}

// absorb merges a later sighting of the same document into the existing
// record, keeping the maximum of every score signal.
func (c *CandidateDocument) absorb(other *CandidateDocument) {
	if other.DenseScore > c.DenseScore {
		c.DenseScore = other.DenseScore
		if other.Snippet != "" {
			c.Snippet = other.Snippet
		}
	}
	if other.FusedScore > c.FusedScore {
		c.FusedScore = other.FusedScore
	}
	if other.LexicalRank > 0 && (c.LexicalRank == 0 || other.LexicalRank < c.LexicalRank) {
		c.LexicalRank = other.LexicalRank
	}
	if c.Title == "" {
		c.Title = other.Title
	}
	if c.Snippet == "" {
		c.Snippet = other.Snippet
	}
	if c.Year == 0 {
		c.Year = other.Year
	}
	if c.Court == "" {
		c.Court = other.Court
	}
}
