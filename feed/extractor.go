package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

var errNoSelector = errors.New("no selector configured")

// Fields holds the text and attribute fields of one entry.
type Fields struct {
	Title         string
	Image         string
	Summary       string
	Source        string
	PublishedTime string
}

// ExtractFields reads every configured field inside el. Each field is
// resolved on its own: a missing or failing sub-element yields "" for that
// field only, and ExtractFields itself never fails.
func ExtractFields(ctx context.Context, s scraper.Session, el scraper.Element, fs models.FieldSet) Fields {
	return Fields{
		Title:         field(ctx, s, el, "title", fs.Title),
		Image:         field(ctx, s, el, "image", fs.Image),
		Summary:       field(ctx, s, el, "summary", fs.Summary),
		Source:        field(ctx, s, el, "source", fs.Source),
		PublishedTime: field(ctx, s, el, "published_time", fs.PublishedTime),
	}
}

func field(ctx context.Context, s scraper.Session, el scraper.Element, name string, spec models.FieldSpec) string {
	v, err := lookup(ctx, s, el, spec)
	if err != nil {
		slog.Debug("field unresolved, defaulting to empty",
			"field", name,
			"selector", spec.Selector,
			"element", describe(el),
			"error", err,
		)
		return ""
	}
	return v
}

// lookup finds spec.Selector inside el and returns its text, or the
// attribute spec.Attr when set. A panicking driver counts as a failed
// lookup.
func lookup(ctx context.Context, s scraper.Session, el scraper.Element, spec models.FieldSpec) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = "", errDriverPanic(r)
		}
	}()

	if spec.Selector == "" {
		return "", errNoSelector
	}
	node, err := s.FindWithin(ctx, el, spec.Selector)
	if err != nil {
		return "", err
	}
	if spec.Attr == "" {
		return s.Text(ctx, node)
	}
	return s.Attribute(ctx, node, spec.Attr)
}

// RecordID returns the first non-empty attribute of el named in attrs, or
// "item-<position>" when none is present.
func RecordID(ctx context.Context, s scraper.Session, el scraper.Element, attrs []string, position int) string {
	for _, name := range attrs {
		v, err := attribute(ctx, s, el, name)
		if err == nil && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return fmt.Sprintf("item-%d", position)
}

func attribute(ctx context.Context, s scraper.Session, el scraper.Element, name string) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = "", errDriverPanic(r)
		}
	}()
	return s.Attribute(ctx, el, name)
}

func errDriverPanic(r any) error {
	return fmt.Errorf("driver panic: %v", r)
}

func describe(el scraper.Element) (s string) {
	defer func() {
		if recover() != nil {
			s = "<unknown>"
		}
	}()
	if el == nil {
		return "<nil>"
	}
	return el.String()
}
