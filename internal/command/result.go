package command

// Kind classifies the outcome of a request.
type Kind int

const (
	// OK means the request was carried out.
	OK Kind = iota
	// Validation means the request was rejected before touching hardware.
	Validation
	// Hardware means a register access failed while serving the request.
	Hardware
	// Internal means the request could not be processed at all.
	Internal
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case Validation:
		return "validation"
	case Hardware:
		return "hardware"
	case Internal:
		return "internal"
	}
	return "unknown"
}

// Result is the outcome of one request. Text is always set and is what the
// client receives.
type Result struct {
	Kind Kind
	Text string
}

// InternalFailure is the generic response sent when serving a request failed
// unexpectedly.
func InternalFailure(request string) Result {
	return Result{Kind: Internal, Text: "Could not process command: " + request}
}

func ok(text string) Result { return Result{Kind: OK, Text: text} }
func invalid(text string) Result { return Result{Kind: Validation, Text: text} }
func hwFailure(text string) Result { return Result{Kind: Hardware, Text: text} }
