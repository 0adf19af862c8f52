package extract

// Progress receives a short human-readable notice before each slow step.
type Progress func(step string)

func (p Progress) emit(step string) {
	if p != nil {
		p(step)
	}
}

// Step notices shown to the caller.
const (
	StepFetchingPage       = "Fetching page..."
	StepLookingForData     = "Looking for recipe data..."
	StepExtractingWithAI   = "Extracting with AI..."
	StepFetchingVideo      = "Fetching video info..."
	StepParsingDescription = "Parsing description..."
	StepFetchingLinked     = "Fetching linked recipe..."
	StepFetchingTranscript = "Fetching video transcript..."
	StepExtractingVideo    = "Extracting instructions from video..."
)
