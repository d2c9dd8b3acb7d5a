package fsm

// ConversionRequest is the FSM input
type ConversionRequest struct {
	RunID     string
	Filename  string
	MediaType string
	Data      []byte
}

// ConversionResponse is the FSM output (accumulated across transitions)
type ConversionResponse struct {
	// From Encode
	ContentType string
	BodySize    int

	// From Submit
	ResponseSize int

	// From Normalize/Complete
	Filename string

	// From Complete/Failed
	Status       string
	ErrorKind    string
	ErrorMessage string
}

// State names
const (
	StateEncode    = "encode"
	StateSubmit    = "submit"
	StateNormalize = "normalize"
	StateComplete  = "complete"
	StateFailed    = "failed"
)

// Action is the name the conversion run is registered under.
const Action = "image-convert"
