package domain

// Actor names who or what touched a record.
type Actor string

const (
	ActorNone   Actor = ""
	ActorHuman  Actor = "human"
	ActorAI     Actor = "ai"
	ActorImport Actor = "import"
	ActorSystem Actor = "system"
)

// DataSource says whether a record's values were measured or guessed.
type DataSource string

const (
	DataSourceNone      DataSource = ""
	DataSourceConcrete  DataSource = "concrete"
	DataSourceEstimated DataSource = "estimated"
)

// ReviewStatus is the human review state of a record.
type ReviewStatus string

const (
	ReviewNone        ReviewStatus = ""
	ReviewNeedsReview ReviewStatus = "needs_review"
	ReviewVerified    ReviewStatus = "verified"
	ReviewAIModified  ReviewStatus = "ai_modified"
)

// ChangeEntry is one field-level entry in a provenance change log.
type ChangeEntry struct {
	Field     string `json:"field"`
	From      any    `json:"from"`
	To        any    `json:"to"`
	By        Actor  `json:"by"`
	At        int64  `json:"at"`
	SessionID string `json:"sessionId,omitempty"`
}

// Provenance describes who created or last touched a record and its review
// state.
type Provenance struct {
	CreatedBy      Actor         `json:"createdBy,omitempty" validate:"omitempty,oneof=human ai import system"`
	LastEditedBy   Actor         `json:"lastEditedBy,omitempty" validate:"omitempty,oneof=human ai import system"`
	CreatedAt      int64         `json:"createdAt,omitempty"`
	LastEditedAt   int64         `json:"lastEditedAt,omitempty"`
	DataSource     DataSource    `json:"dataSource,omitempty" validate:"omitempty,oneof=concrete estimated"`
	SourceRef      string        `json:"sourceRef,omitempty"`
	ReviewStatus   ReviewStatus  `json:"reviewStatus,omitempty" validate:"omitempty,oneof=needs_review verified ai_modified"`
	VerifiedAt     int64         `json:"verifiedAt,omitempty"`
	VerifiedBy     Actor         `json:"verifiedBy,omitempty"`
	ModifiedFields []string      `json:"modifiedFields,omitempty"`
	ChangeLog      []ChangeEntry `json:"changeLog,omitempty"`
}

// StampCreated fills the creation fields that are not already set.
func (p *Provenance) StampCreated(by Actor, at int64) {
	if p.CreatedBy == ActorNone {
		p.CreatedBy = by
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = at
	}
	p.LastEditedBy = by
	p.LastEditedAt = at
}

// StampEdited records an edit by the given actor.
func (p *Provenance) StampEdited(by Actor, at int64) {
	p.LastEditedBy = by
	p.LastEditedAt = at
}

// AddModified appends fields to ModifiedFields, keeping the first occurrence
// of each name.
func (p *Provenance) AddModified(fields ...string) {
	seen := make(map[string]bool, len(p.ModifiedFields))
	for _, f := range p.ModifiedFields {
		seen[f] = true
	}
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		p.ModifiedFields = append(p.ModifiedFields, f)
	}
}

// AppendChanges appends entries to the change log.
func (p *Provenance) AppendChanges(entries ...ChangeEntry) {
	p.ChangeLog = append(p.ChangeLog, entries...)
}

// SetReviewStatus transitions the review state. Moving to verified clears the
// edit history and stamps the verifier; other transitions keep history.
func (p *Provenance) SetReviewStatus(status ReviewStatus, by Actor, at int64) {
	p.ReviewStatus = status
	if status != ReviewVerified {
		return
	}
	p.ModifiedFields = nil
	p.ChangeLog = nil
	if p.VerifiedAt == 0 {
		p.VerifiedAt = at
	}
	if p.VerifiedBy == ActorNone {
		p.VerifiedBy = by
	}
}

// Mentions reports whether the actor created or last edited the record.
func (p *Provenance) Mentions(a Actor) bool {
	return p.CreatedBy == a || p.LastEditedBy == a
}

// Clone returns a deep copy so callers can mutate slices safely.
func (p Provenance) Clone() Provenance {
	if p.ModifiedFields != nil {
		p.ModifiedFields = append([]string(nil), p.ModifiedFields...)
	}
	if p.ChangeLog != nil {
		p.ChangeLog = append([]ChangeEntry(nil), p.ChangeLog...)
	}
	return p
}
