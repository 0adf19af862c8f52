// Package events turns pipeline outcomes into an ordered stream of named
// frames. Exactly one terminal frame is written per request; a usage frame
// may follow a complete frame.
package events

import (
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/recipe-cli/internal/model"
)

// Event names on the wire.
const (
	NameProgress     = "progress"
	NameComplete     = "complete"
	NameUsage        = "usage"
	NameLimitReached = "limit_reached"
	NameError        = "error"
)

// ErrClosed is returned when a frame is emitted after the stream ended.
var ErrClosed = eris.New("events: stream already terminated")

// FrameSender delivers one serialized frame to the caller.
type FrameSender interface {
	Send(name string, data []byte) error
}

// Progress is an advisory step notice.
type Progress struct {
	Step string `json:"step"`
}

// Complete carries the extracted recipe.
type Complete struct {
	Recipe *model.Recipe `json:"recipe"`
	Cached bool          `json:"cached"`
}

// LimitReached tells the caller to prompt for an upgrade.
type LimitReached struct {
	Message         string `json:"message"`
	Current         int    `json:"current"`
	Limit           int    `json:"limit"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// Error is a terminal failure with a short user-facing message.
type Error struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// Usage reports quota consumption after a successful extraction.
type Usage struct {
	Current         int  `json:"current"`
	Limit           int  `json:"limit"`
	Remaining       int  `json:"remaining"`
	IsLastFree      bool `json:"isLastFree"`
	IsAuthenticated bool `json:"isAuthenticated"`
}

type state int

const (
	stateOpen state = iota
	stateCompleted
	stateClosed
)

// Emitter enforces event ordering over a FrameSender. It is safe for
// concurrent use, although the pipeline emits from one goroutine.
type Emitter struct {
	mu     sync.Mutex
	sender FrameSender
	state  state
	last   string
}

// NewEmitter wraps sender.
func NewEmitter(sender FrameSender) *Emitter {
	return &Emitter{sender: sender}
}

// Progress emits a step notice. It is dropped silently once terminated.
func (e *Emitter) Progress(step string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateOpen {
		return nil
	}
	return e.send(NameProgress, Progress{Step: step})
}

// Complete emits the success terminal.
func (e *Emitter) Complete(r *model.Recipe, cached bool) error {
	return e.terminal(NameComplete, Complete{Recipe: r, Cached: cached}, stateCompleted)
}

// LimitReached emits the quota terminal.
func (e *Emitter) LimitReached(ev LimitReached) error {
	return e.terminal(NameLimitReached, ev, stateClosed)
}

// Error emits the failure terminal.
func (e *Emitter) Error(kind, message string) error {
	return e.terminal(NameError, Error{Message: message, Kind: kind}, stateClosed)
}

// Usage emits the trailing usage frame. It is only valid right after Complete.
func (e *Emitter) Usage(u Usage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateCompleted {
		return ErrClosed
	}
	e.state = stateClosed
	return e.send(NameUsage, u)
}

// Terminated reports whether a terminal frame was emitted.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != stateOpen
}

// Terminal returns the name of the terminal frame, or "".
func (e *Emitter) Terminal() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *Emitter) terminal(name string, v any, next state) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateOpen {
		return ErrClosed
	}
	e.state = next
	e.last = name
	return e.send(name, v)
}

func (e *Emitter) send(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "events: marshal %s", name)
	}
	if err := e.sender.Send(name, data); err != nil {
		return eris.Wrapf(err, "events: send %s", name)
	}
	return nil
}
