package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/constellahq/constellation/auditor"
	"github.com/constellahq/constellation/engine"
)

// ErrNoResult reports a channel that closed without a terminal "complete"
// event. Callers must never treat it as success.
var ErrNoResult = errors.New("stream closed without a complete event")

// maxFrameSize bounds a single frame; a full turn snapshot with every audit
// fits comfortably within it. An over-long line is discarded like any other
// malformed frame rather than aborting the stream.
const maxFrameSize = 1 << 20 // 1MB

// frame is the raw wire shape of one event, with the result payload left
// undecoded until the step is known.
type frame struct {
	Step           string          `json:"step"`
	Status         string          `json:"status"`
	Draft          string          `json:"draft"`
	ActiveAuditors []auditor.ID    `json:"active_auditors"`
	AuditorID      auditor.ID      `json:"auditor_id"`
	Result         json.RawMessage `json:"result"`
	Safe           *bool           `json:"safe"`
}

// Decoder reads the push channel as an unbounded sequence of frames. Each
// frame parses independently; a frame that fails to parse is silently
// dropped and decoding resumes at the next frame boundary, so partial or
// interleaved network chunks never abort the stream.
type Decoder struct {
	reader *bufio.Reader
}

// NewDecoder creates a decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Decode consumes the channel, invoking onEvent (which may be nil) for every
// successfully parsed event. It returns the final turn snapshot embedded in
// the terminal "complete" event. If the channel closes before a "complete"
// event is observed, it returns ErrNoResult.
func (d *Decoder) Decode(onEvent func(engine.Event)) (*engine.TurnResult, error) {
	if onEvent == nil {
		onEvent = func(engine.Event) {}
	}

	for {
		line, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNoResult
			}
			return nil, fmt.Errorf("read stream: %w", err)
		}
		if !strings.HasPrefix(line, framePrefix) {
			continue // not a frame: keepalive, blank line, or noise
		}

		ev, ok := parseFrame(strings.TrimPrefix(line, framePrefix))
		if !ok {
			continue // malformed frame: drop and resume
		}
		onEvent(ev)

		if ev.Step == engine.StepComplete {
			if result, ok := ev.FinalTurn(); ok {
				return result, nil
			}
			return nil, fmt.Errorf("complete event carried no turn snapshot")
		}
	}
}

// readLine reads one newline-delimited line. A line exceeding maxFrameSize is
// consumed through to its end and returned empty, so an oversized frame is
// dropped at the next boundary instead of poisoning the rest of the channel.
func (d *Decoder) readLine() (string, error) {
	var buf []byte
	oversized := false
	for {
		// ReadLine never returns data alongside an error, so a final
		// unterminated line still arrives before io.EOF.
		segment, isPrefix, err := d.reader.ReadLine()
		if err != nil {
			return "", err
		}
		if !oversized {
			if len(buf)+len(segment) > maxFrameSize {
				oversized = true
				buf = nil
			} else {
				buf = append(buf, segment...)
			}
		}
		if !isPrefix {
			return string(buf), nil
		}
	}
}

// parseFrame decodes one frame payload into a typed event. The result field
// is decoded per step: an auditor verdict on "<id>_check" events, a turn
// snapshot on "complete".
func parseFrame(payload string) (engine.Event, bool) {
	var f frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return engine.Event{}, false
	}
	if f.Step == "" {
		return engine.Event{}, false
	}

	ev := engine.Event{
		Step:           f.Step,
		Status:         f.Status,
		Draft:          f.Draft,
		ActiveAuditors: f.ActiveAuditors,
		AuditorID:      f.AuditorID,
		Safe:           f.Safe,
	}

	if len(f.Result) > 0 {
		switch {
		case f.Step == engine.StepComplete:
			var result engine.TurnResult
			if err := json.Unmarshal(f.Result, &result); err != nil {
				return engine.Event{}, false
			}
			ev.Result = &result
		default:
			if _, isCheck := ev.IsCheck(); isCheck {
				var res auditor.Result
				if err := json.Unmarshal(f.Result, &res); err != nil {
					return engine.Event{}, false
				}
				ev.Result = res
			}
		}
	}

	return ev, true
}
