// Package stream implements the progress-event wire protocol: one JSON
// object per text frame on a persistent unidirectional push channel. Frames
// are "data: "-prefixed and newline-delimited (server-sent-event style);
// lines not matching the frame prefix are ignored by the decoder.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/constellahq/constellation/engine"
)

// framePrefix marks a protocol frame. Anything else on the channel is noise.
const framePrefix = "data: "

// Encoder serializes progress events onto a push channel, flushing after
// every frame so the consumer observes step transitions in real time.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder creates an encoder over w. If w implements http.Flusher (as
// HTTP response writers do), every frame is flushed immediately.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Encode writes one event as a discrete frame and flushes it.
func (e *Encoder) Encode(ev engine.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", framePrefix, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
