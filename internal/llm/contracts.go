package llm

import (
	"context"

	"github.com/joseph-ayodele/gig-earnings-audit/internal/entity"
)

// RefineRequest is what the refinement model sees.
type RefineRequest struct {
	RawText      string
	PlatformHint string
}

// Refiner is the optional model-assisted pass our parser depends on.
// A nil patch (or one with no fields) means "nothing to add".
type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) (*entity.EarningsPatch, []byte /*rawJSON*/, error)
}

// Transcriber turns a statement image into plain text using a vision model.
type Transcriber interface {
	Transcribe(ctx context.Context, imagePath string) (string, error)
}
