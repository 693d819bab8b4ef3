// Package document models program fragments as they come back from the
// vector store and as they leave the reranker.
package document

import (
	"path"
	"strings"
)

// Payload field names shared by the retrieval filters and the stores.
const (
	FieldContent          = "content"
	FieldCandidate        = "candidate"
	FieldParty            = "party"
	FieldPageNumber       = "page_number"
	FieldTopicCategory    = "topic_category"
	FieldProposalType     = "proposal_type"
	FieldTaxonomyPath     = "taxonomy_path"
	FieldTags             = "tags"
	FieldHeaders          = "headers"
	FieldSectionHierarchy = "section_hierarchy"
	FieldSourceFile       = "source_file"
)

// PayloadFields lists every payload field a search hit should carry.
var PayloadFields = []string{
	FieldContent, FieldCandidate, FieldParty, FieldPageNumber,
	FieldTopicCategory, FieldProposalType, FieldTaxonomyPath, FieldTags,
	FieldHeaders, FieldSectionHierarchy, FieldSourceFile,
}

// KeywordFields are the payload fields filters run against.
var KeywordFields = []string{FieldCandidate, FieldTopicCategory, FieldTaxonomyPath, FieldTags}

const (
	defaultProgramName  = "Programa"
	defaultSectionTitle = "Sección General"
)

// Header is one markdown heading of the fragment, keyed by its level label.
type Header struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Candidate is one retrieved fragment before reranking.
type Candidate struct {
	ID               string   `json:"id"`
	Content          string   `json:"content"`
	Entity           string   `json:"candidate"`
	Party            string   `json:"party"`
	PageNumber       int      `json:"page_number"`
	TopicCategory    string   `json:"topic_category"`
	ProposalType     string   `json:"proposal_type"`
	TaxonomyPath     string   `json:"taxonomy_path"`
	Tags             []string `json:"tags"`
	Headers          []Header `json:"headers"`
	SectionHierarchy []string `json:"section_hierarchy"`
	SourceFile       string   `json:"source_file"`
	ProgramName      string   `json:"program_name"`
	SectionTitle     string   `json:"section_title"`
	VectorScore      float64  `json:"score"`
}

// deriveDisplayFields fills ProgramName and SectionTitle for citations.
func (c *Candidate) deriveDisplayFields() {
	c.ProgramName = programName(c.SourceFile, c.Entity)
	c.SectionTitle = sectionTitle(c.Headers, c.SectionHierarchy, c.TopicCategory)
}

func programName(sourceFile, entity string) string {
	if sourceFile != "" {
		base := path.Base(strings.ReplaceAll(sourceFile, "\\", "/"))
		base = strings.TrimSuffix(base, ".md")
		base = strings.Replace(base, "Programa_", "", 1)
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	if entity != "" {
		return entity
	}
	return defaultProgramName
}

func sectionTitle(headers []Header, hierarchy []string, topic string) string {
	for _, h := range headers {
		if h.Text != "" {
			return h.Text
		}
	}
	if len(hierarchy) > 0 && hierarchy[0] != "" {
		return hierarchy[0]
	}
	if topic != "" {
		return topic
	}
	return defaultSectionTitle
}

// HeaderText joins all header texts with spaces.
func (c *Candidate) HeaderText() string {
	parts := make([]string, 0, len(c.Headers))
	for _, h := range c.Headers {
		parts = append(parts, h.Text)
	}
	return strings.Join(parts, " ")
}

// ScoreBreakdown records each reranking component.
type ScoreBreakdown struct {
	Semantic      float64 `json:"semantic"`
	TagContent    float64 `json:"tag_content"`
	TaxonomyBonus float64 `json:"taxonomy_bonus"`
	Diversity     float64 `json:"diversity"`
	Header        float64 `json:"header"`
}

// Ranked is a Candidate with its hybrid score.
type Ranked struct {
	Candidate
	FinalScore float64        `json:"final_score"`
	Breakdown  ScoreBreakdown `json:"score_breakdown"`
}
