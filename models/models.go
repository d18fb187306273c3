package models

import (
	"errors"
	"time"
)

// ErrItemNotFound is returned when a content item is not found
var ErrItemNotFound = errors.New("content item not found")

// Relevance labels assigned by the classifier. IRRELEVANT items are
// excluded from every later pipeline stage.
const (
	LabelFoundationModels  = "FOUNDATION_MODELS"
	LabelMultimodalAI      = "MULTIMODAL_AI"
	LabelAgenticAI         = "AGENTIC_AI"
	LabelLLMInfrastructure = "LLM_INFRASTRUCTURE"
	LabelAISafetyPolicy    = "AI_SAFETY_POLICY"
	LabelAppliedGenAI      = "APPLIED_GENAI"
	LabelIrrelevant        = "IRRELEVANT"
)

// KnownLabels is the closed label set the classifier contract allows.
var KnownLabels = map[string]struct{}{
	LabelFoundationModels:  {},
	LabelMultimodalAI:      {},
	LabelAgenticAI:         {},
	LabelLLMInfrastructure: {},
	LabelAISafetyPolicy:    {},
	LabelAppliedGenAI:      {},
	LabelIrrelevant:        {},
}

// MinRelevanceConfidence is the prompt-level contract floor: anything
// the model labels with lower confidence is clamped to IRRELEVANT.
const MinRelevanceConfidence = 0.75

type ValidationStatus string

const (
	ValidationPending ValidationStatus = "PENDING"
	ValidationPass    ValidationStatus = "PASS"
	ValidationFail    ValidationStatus = "FAIL"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
)

// ContentItem is the single mutable entity moving through the pipeline.
// Each stage fills in its own field group and never touches a later
// stage's fields; empty values mean the stage has not run yet.
type ContentItem struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	Body        string    `json:"body"`
	Authors     []string  `json:"authors"`

	Topics    []string  `json:"topics"`
	Embedding []float32 `json:"embedding,omitempty"`
	ClusterID string    `json:"cluster_id,omitempty"`

	RelevanceLabel      string  `json:"relevance_label,omitempty"`
	RelevanceConfidence float64 `json:"relevance_confidence"`
	RelevanceReason     string  `json:"relevance_reason,omitempty"`

	// PriorityScore doubles as the "not yet ranked" sentinel: 0.0 means
	// unranked, so a legitimately computed zero would be re-ranked on
	// the next run. Carried over from the source data model.
	PriorityScore float64 `json:"priority_score"`

	SummaryHeadline   string   `json:"summary_headline,omitempty"`
	SummaryTLDR       string   `json:"summary_tldr,omitempty"`
	SummaryHighlights []string `json:"summary_highlights,omitempty"`
	SummaryWhyMatters string   `json:"summary_why_matters,omitempty"`

	ValidationStatus ValidationStatus `json:"validation_status"`
	DeliveryStatus   DeliveryStatus   `json:"delivery_status"`
}

// Relevant reports whether the item carries a usable, non-IRRELEVANT label.
func (c ContentItem) Relevant() bool {
	return c.RelevanceLabel != "" && c.RelevanceLabel != LabelIrrelevant
}

// Recipient is a delivery target for digest messages.
type Recipient struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	OptIn     bool      `json:"opt_in"`
	CreatedAt time.Time `json:"created_at"`
}
