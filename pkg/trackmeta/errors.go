package trackmeta

import "github.com/pkg/errors"

// Parse failures. Callers treat every one of them as "no metadata" and fall
// back; none of them is fatal.
var (
	// ErrDecode means no candidate encoding produced usable text.
	ErrDecode = errors.New("metadata could not be decoded")
	// ErrPatternMiss means no stream title pattern matched and nothing
	// title-like could be salvaged from the text.
	ErrPatternMiss = errors.New("no stream title in metadata")
	// ErrPlaceholder means the stream sent the literal "StreamTitle"
	// placeholder instead of a real track.
	ErrPlaceholder = errors.New("placeholder stream title")
	// ErrTooShort means the recovered title is shorter than two characters.
	ErrTooShort = errors.New("stream title too short")
)
