package rod

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"table-scraper/internal/browser"
)

var _ browser.Element = (*Element)(nil)

// Element wraps one rod element handle.
type Element struct {
	el *rod.Element
}

func (e *Element) Find(engine browser.Engine, selector string) (browser.Element, error) {
	els, err := e.FindAll(engine, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, browser.ErrNoMatch
	}
	return els[0], nil
}

func (e *Element) FindAll(engine browser.Engine, selector string) ([]browser.Element, error) {
	var (
		els rod.Elements
		err error
	)
	if engine == browser.EngineXPath {
		els, err = e.el.ElementsX(selector)
	} else {
		els, err = e.el.Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %s: %w", selector, err)
	}
	return wrapElements(els), nil
}

func (e *Element) Count(engine browser.Engine, selector string) (int, error) {
	els, err := e.FindAll(engine, selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (e *Element) WaitFor(ctx context.Context, engine browser.Engine, selector string, state browser.State, timeout time.Duration) (browser.Element, error) {
	return waitFor(ctx, e, engine, selector, state, timeout)
}

func (e *Element) Click() error {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (e *Element) Fill(text string) error {
	if err := e.el.SelectAllText(); err == nil {
		_ = e.el.Input("")
	}
	if err := e.el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (e *Element) SelectOption(value string) error {
	_, err := e.el.Eval(`(value) => {
		this.value = value;
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`, value)
	if err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	return nil
}

func (e *Element) PressEnter() error {
	if err := e.el.Input("\r"); err != nil {
		return fmt.Errorf("failed to press Enter: %w", err)
	}
	return nil
}

func (e *Element) Text() (string, error) {
	return e.el.Text()
}

func (e *Element) Attribute(name string) (*string, error) {
	return e.el.Attribute(name)
}

func (e *Element) Property(name string) (gson.JSON, error) {
	return e.el.Property(name)
}

func (e *Element) Eval(js string, args ...interface{}) (gson.JSON, error) {
	res, err := e.el.Eval(js, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (e *Element) Visible() (bool, error) {
	return e.el.Visible()
}
