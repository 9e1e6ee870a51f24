package interfaces

import (
	"context"
	"fmt"

	"github.com/ternarybob/colligo/internal/models"
)

// RenderOptions tune one render call
type RenderOptions struct {
	WaitBudgetMs             int  `json:"wait_budget_ms"`
	ContentStabilityBudgetMs int  `json:"content_stability_budget_ms"`
	UseIncognito             bool `json:"use_incognito"`
}

// RenderResult is the full output of one render call. HTML may be empty when
// the result was served from the page cache.
type RenderResult struct {
	HTML         string               `json:"html,omitempty"`
	Text         string               `json:"text"`
	Metadata     *models.PageMetadata `json:"metadata,omitempty"`
	Markdown     string               `json:"markdown,omitempty"`
	MarkdownMeta *models.MarkdownMeta `json:"markdown_meta,omitempty"`
	Links        []string             `json:"links"` // absolute URLs, DOM order
	FromCache    bool                 `json:"from_cache,omitempty"`
}

// RenderErrorKind classifies render failures
type RenderErrorKind string

const (
	RenderErrLoadTimeout      RenderErrorKind = "load_timeout"
	RenderErrNavigationFailed RenderErrorKind = "navigation_failed"
	RenderErrScriptError      RenderErrorKind = "script_error"
	RenderErrCancelled        RenderErrorKind = "cancelled"
	RenderErrInternal         RenderErrorKind = "internal"
)

// RenderError is the typed failure a slot returns
type RenderError struct {
	Kind      RenderErrorKind
	Message   string
	Retryable bool
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s", e.Kind, e.Message)
}

// NewRenderError builds a typed render error
func NewRenderError(kind RenderErrorKind, message string, retryable bool) *RenderError {
	return &RenderError{Kind: kind, Message: message, Retryable: retryable}
}

// RenderSlot is exclusive, reusable access to one rendering context. A slot
// renders a single URL at a time; it must not be handed a second URL until
// the current call resolves or is cancelled.
type RenderSlot interface {
	Render(ctx context.Context, url string, opts RenderOptions) (*RenderResult, error)
	Close() error
}

// SlotPool manages a fixed-size set of render slots. Acquire blocks until a
// slot is idle or the context is cancelled; Release returns the slot to the
// pool. Close tears down every slot; the pool guarantees no dangling
// contexts afterwards.
type SlotPool interface {
	Acquire(ctx context.Context) (RenderSlot, error)
	Release(slot RenderSlot)
	Size() int
	Close() error
}
