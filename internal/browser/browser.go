// Package browser defines the capability set the scraping engine needs from a
// browser automation driver. The engine is written against these interfaces
// only; the rod-backed implementation lives in the rod subpackage.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/ysmood/gson"
)

// Engine selects the query language a selector is written in.
type Engine string

const (
	EngineCSS   Engine = "css"
	EngineXPath Engine = "xpath"
)

// State is the DOM state a wait resolves on.
type State string

const (
	StateAttached State = "attached"
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
)

var (
	// ErrNoMatch is returned by immediate queries that find nothing.
	ErrNoMatch = errors.New("no element matched")
	// ErrWaitTimeout is returned when a state wait exceeds its deadline.
	ErrWaitTimeout = errors.New("wait timed out")
)

// LaunchOptions control how a browser process is started.
type LaunchOptions struct {
	Headless   bool
	BinPath    string
	SlowMotion time.Duration
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser process.
type Browser interface {
	// NewContext opens an isolated context, optionally seeded with a
	// previously exported storage state.
	NewContext(state *StorageState) (Context, error)
	Close() error
}

// Context is an isolated cookie/storage universe within a browser.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	// StorageState exports the context's cookies and local storage in a
	// shape that round-trips through NewContext.
	StorageState(ctx context.Context) (*StorageState, error)
	Close() error
}

// Node is anything elements can be queried under: a page, a frame root, or
// an element.
type Node interface {
	// Find returns the first current match, ErrNoMatch when there is none.
	Find(engine Engine, selector string) (Element, error)
	// FindAll returns every current match without waiting.
	FindAll(engine Engine, selector string) ([]Element, error)
	// Count reports how many elements currently match.
	Count(engine Engine, selector string) (int, error)
	// WaitFor polls until the first match reaches the wanted state or the
	// timeout elapses. For StateHidden a nil element with a nil error means
	// nothing matched, which counts as hidden.
	WaitFor(ctx context.Context, engine Engine, selector string, state State, timeout time.Duration) (Element, error)
}

// Page is one tab or frame root.
type Page interface {
	Node

	Goto(ctx context.Context, url string) error
	URL() string
	// Content returns the full serialized HTML of the page.
	Content() (string, error)
	// Screenshot captures the current viewport as JPEG bytes.
	Screenshot() ([]byte, error)
	Eval(js string, args ...interface{}) (gson.JSON, error)
	// FrameByURL waits for an iframe whose src contains substr and returns
	// its content root.
	FrameByURL(ctx context.Context, substr string, timeout time.Duration) (Page, error)
	// FrameBySelector waits for the iframe matched by a CSS selector and
	// returns its content root.
	FrameBySelector(ctx context.Context, selector string, timeout time.Duration) (Page, error)
	Close() error
}

// Element is a handle to one DOM element.
type Element interface {
	Node

	Click() error
	// Fill replaces the element's current text with the given value.
	Fill(text string) error
	// SelectOption sets a select control to the option with the given value
	// and fires a change event.
	SelectOption(value string) error
	PressEnter() error
	Text() (string, error)
	// Attribute returns nil when the attribute is absent.
	Attribute(name string) (*string, error)
	Property(name string) (gson.JSON, error)
	Eval(js string, args ...interface{}) (gson.JSON, error)
	Visible() (bool, error)
}
