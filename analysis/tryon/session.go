package tryon

import (
	"fmt"

	"github.com/fashnai/fashnai/analysis/contract"
	"github.com/fashnai/fashnai/features/images"
	"github.com/fashnai/fashnai/runtime/agent/invoke"
)

// State is a stage of the try-on pipeline.
type State string

const (
	StateAwaitingSpecs  State = "AWAITING_SPECS"
	StateSpecResolved   State = "SPEC_RESOLVED"
	StatePhotoAnalyzed  State = "PHOTO_ANALYZED"
	StateImageRequested State = "IMAGE_REQUESTED"
	StateImageReady     State = "IMAGE_READY"
	StateRegionBlocked  State = "REGION_BLOCKED"
	StateImageFailed    State = "IMAGE_FAILED"
)

// SpecSource records where the garment specifications came from.
type SpecSource string

const (
	SpecsFromCaller SpecSource = "caller"
	SpecsFromCache  SpecSource = "cache"
	SpecsFromCrawl  SpecSource = "crawl"
)

var transitions = map[State][]State{
	StateAwaitingSpecs:  {StateSpecResolved},
	StateSpecResolved:   {StatePhotoAnalyzed},
	StatePhotoAnalyzed:  {StateImageRequested, StateImageFailed},
	StateImageRequested: {StateImageReady, StateRegionBlocked, StateImageFailed},
}

type (
	// Photo is a decoded user photo.
	Photo struct {
		MimeType string
		Data     []byte
	}

	// Session holds the state of one try-on request. It is owned by a single
	// pipeline run and discarded once the response is returned.
	Session struct {
		// ID identifies the session in logs.
		ID string
		// State is the current stage.
		State State
		// History lists every state the session went through, in order.
		History []State
		// ProductURL is the product page.
		ProductURL string
		// Specs are the garment specifications when known.
		Specs *contract.ProductSpecification
		// SpecSource tells whether Specs came from the caller or the cache, or
		// whether the agent had to crawl.
		SpecSource SpecSource
		// Photo is the decoded user photo, nil when none was supplied or it
		// could not be decoded.
		Photo *Photo
		// PhotoAnalysis conditions image generation. It is never returned to
		// the caller.
		PhotoAnalysis string
		// References are product images passed to the generator.
		References []images.Reference
		// Prompt is the image generation prompt.
		Prompt string
		// Outcome is the result of the try-on agent invocation.
		Outcome invoke.Outcome[contract.VirtualTryOnResult]
		// Result is the enriched try-on result.
		Result contract.VirtualTryOnResult
		// ImageErr is the image stage failure, if any.
		ImageErr error
	}
)

func newSession(id, productURL string) *Session {
	return &Session{
		ID:         id,
		ProductURL: productURL,
		State:      StateAwaitingSpecs,
		History:    []State{StateAwaitingSpecs},
	}
}

// Terminal reports whether the session reached a final state.
func (s *Session) Terminal() bool {
	switch s.State {
	case StateImageReady, StateRegionBlocked, StateImageFailed:
		return true
	}
	return false
}

func (s *Session) transition(to State) error {
	for _, allowed := range transitions[s.State] {
		if allowed == to {
			s.State = to
			s.History = append(s.History, to)
			return nil
		}
	}
	return fmt.Errorf("tryon: invalid transition %s -> %s", s.State, to)
}
