package qa

import (
	"context"
	"errors"
	"strings"
)

// NoResponse is used as the answer when the chain produced no usable text.
const NoResponse = "No response"

// ErrChainUnavailable reports that no usable chain could be built, usually
// because the vector index is missing or empty.
var ErrChainUnavailable = errors.New("qa chain unavailable")

// Gateway answers a single question.
type Gateway interface {
	Answer(ctx context.Context, query string) (*Response, error)
}

// Factory hands out a Gateway for one submission. A nil Gateway with a nil
// error is treated the same as ErrChainUnavailable by callers.
type Factory interface {
	Gateway(ctx context.Context) (Gateway, error)
}

// Source is a retrieved passage that grounded an answer.
type Source struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// Response is the structured output of a chain invocation.
type Response struct {
	Result  string   `json:"result"`
	Sources []Source `json:"sources,omitempty"`
}

// Text extracts the answer, falling back to NoResponse.
func (r *Response) Text() string {
	if r == nil || strings.TrimSpace(r.Result) == "" {
		return NoResponse
	}
	return r.Result
}
