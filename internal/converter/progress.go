package converter

// Phase tags a progress report. Optimized runs go compressing then processing; direct
// runs go loading then processing, so both modes show two distinct stages. Loading is
// also the phase of an *ImageError raised while reading or decoding an input.
type Phase string

const (
	PhaseCompressing Phase = "compressing"
	PhaseLoading     Phase = "loading"
	PhaseProcessing  Phase = "processing"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// Progress is one step of a run. Current is 1-based and never decreases within a phase;
// Total is fixed for the whole run.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Phase   Phase  `json:"phase"`
	Message string `json:"message,omitempty"`
}

// Reporter receives progress synchronously at every step boundary.
type Reporter interface {
	Step(Progress)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Progress)

func (f ReporterFunc) Step(p Progress) {
	f(p)
}

// Discard is a Reporter that drops every report.
var Discard Reporter = ReporterFunc(func(Progress) {})

func orDiscard(r Reporter) Reporter {
	if r == nil {
		return Discard
	}
	return r
}
