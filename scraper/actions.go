package scraper

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// actionTimeout is the per-action deadline used when none is configured.
const actionTimeout = 10 * time.Second

// execJS evaluates a statement in the page context. Bare statements such as
// "window.scrollBy(0, 2000)" are wrapped into a function so rod can call it.
func execJS(p *rod.Page, js string) error {
	if strings.TrimSpace(js) == "" {
		return fmt.Errorf("script is empty")
	}
	_, err := p.Eval(asFunction(js))
	return err
}

func asFunction(js string) string {
	trimmed := strings.TrimSpace(js)
	if strings.HasPrefix(trimmed, "()") || strings.HasPrefix(trimmed, "function") {
		return trimmed
	}
	return "() => { " + trimmed + " }"
}

// execClick clicks the element with the left mouse button. rod scrolls it
// into view and waits for it to be interactable first.
func execClick(el *rod.Element) error {
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// findWithin returns the first descendant of root matching selector.
// Unlike Element, Has does not retry until the element appears.
func findWithin(root *rod.Element, selector string) (*rod.Element, error) {
	has, el, err := root.Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return el, nil
}

// readAttribute returns the named attribute. For URL-valued attributes the
// resolved DOM property is preferred, so relative paths come back absolute.
func readAttribute(el *rod.Element, name string) (string, error) {
	attr, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if attr == nil {
		return "", fmt.Errorf("%w: %s", ErrNoAttribute, name)
	}

	switch name {
	case "src", "href", "currentSrc":
		if prop, propErr := el.Property(name); propErr == nil {
			if v := prop.Str(); v != "" {
				return v, nil
			}
		}
	}
	return *attr, nil
}
