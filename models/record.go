package models

// Record is one entry scraped from the feed. Every field is a plain string;
// a field that could not be resolved is "".
//
// Field order below is the serialization order.
type Record struct {
	ID            string `json:"id,omitempty"`
	Title         string `json:"title"`
	Image         string `json:"image"`
	Summary       string `json:"summary"`
	Source        string `json:"source"`
	PublishedTime string `json:"published_time"`
	Audio         string `json:"audio"`
}

// FieldSpec locates one field inside a record wrapper. An empty Attr means
// the element's text content is read.
type FieldSpec struct {
	Selector string `json:"selector" yaml:"selector"`
	Attr     string `json:"attr,omitempty" yaml:"attr,omitempty"`
}

// FieldSet describes every extractable field of a record.
type FieldSet struct {
	Title         FieldSpec `json:"title" yaml:"title"`
	Image         FieldSpec `json:"image" yaml:"image"`
	Summary       FieldSpec `json:"summary" yaml:"summary"`
	Source        FieldSpec `json:"source" yaml:"source"`
	PublishedTime FieldSpec `json:"published_time" yaml:"published_time"`

	// IDAttrs are wrapper attributes tried in order for the record id.
	IDAttrs []string `json:"id_attrs,omitempty" yaml:"id_attrs,omitempty"`
}

// MediaSpec describes the optional play-to-load audio interaction.
type MediaSpec struct {
	// Control is the play/pause affordance, scoped to the wrapper.
	Control string `json:"control" yaml:"control"`

	// Element is the media element mounted by the player.
	Element string `json:"element" yaml:"element"`

	// Attr holds the resource locator on Element.
	Attr string `json:"attr" yaml:"attr"`
}

// Selectors bundles everything needed to find and read records on a page.
type Selectors struct {
	// Wrapper matches one element per feed entry.
	Wrapper string `json:"wrapper" yaml:"wrapper"`

	// FallbackWrapper is a broader match tried once when Wrapper finds nothing.
	FallbackWrapper string `json:"fallback_wrapper,omitempty" yaml:"fallback_wrapper,omitempty"`

	Fields FieldSet  `json:"fields" yaml:"fields"`
	Media  MediaSpec `json:"media" yaml:"media"`
}

// DefaultSelectors returns the selector set for the Genspark news feed.
func DefaultSelectors() Selectors {
	return Selectors{
		Wrapper:         ".flow_item_wrapper",
		FallbackWrapper: `[class*="flow_item"], article`,
		Fields: FieldSet{
			Title:         FieldSpec{Selector: ".title"},
			Image:         FieldSpec{Selector: ".image img", Attr: "src"},
			Summary:       FieldSpec{Selector: ".summary"},
			Source:        FieldSpec{Selector: ".source-name"},
			PublishedTime: FieldSpec{Selector: ".published-time"},
			IDAttrs:       []string{"data-id", "id"},
		},
		Media: MediaSpec{
			Control: ".podcast-player .play-pause-btn",
			Element: ".podcast-player audio",
			Attr:    "src",
		},
	}
}

// Merge returns s with every non-empty selector of o applied on top.
// A field is replaced as a whole, attribute included.
func (s Selectors) Merge(o Selectors) Selectors {
	s.Wrapper = orString(o.Wrapper, s.Wrapper)
	s.FallbackWrapper = orString(o.FallbackWrapper, s.FallbackWrapper)
	s.Fields.Title = mergeField(s.Fields.Title, o.Fields.Title)
	s.Fields.Image = mergeField(s.Fields.Image, o.Fields.Image)
	s.Fields.Summary = mergeField(s.Fields.Summary, o.Fields.Summary)
	s.Fields.Source = mergeField(s.Fields.Source, o.Fields.Source)
	s.Fields.PublishedTime = mergeField(s.Fields.PublishedTime, o.Fields.PublishedTime)
	if len(o.Fields.IDAttrs) > 0 {
		s.Fields.IDAttrs = o.Fields.IDAttrs
	}
	s.Media.Control = orString(o.Media.Control, s.Media.Control)
	s.Media.Element = orString(o.Media.Element, s.Media.Element)
	s.Media.Attr = orString(o.Media.Attr, s.Media.Attr)
	return s
}

func mergeField(current, override FieldSpec) FieldSpec {
	if override.Selector == "" {
		return current
	}
	return override
}

func orString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// All returns every selector in s that must be valid CSS, keyed by a
// human-readable name. Empty optional selectors are skipped.
func (s Selectors) All() map[string]string {
	out := map[string]string{
		"wrapper":               s.Wrapper,
		"fields.title":          s.Fields.Title.Selector,
		"fields.image":          s.Fields.Image.Selector,
		"fields.summary":        s.Fields.Summary.Selector,
		"fields.source":         s.Fields.Source.Selector,
		"fields.published_time": s.Fields.PublishedTime.Selector,
	}
	if s.FallbackWrapper != "" {
		out["fallback_wrapper"] = s.FallbackWrapper
	}
	if s.Media.Control != "" {
		out["media.control"] = s.Media.Control
	}
	if s.Media.Element != "" {
		out["media.element"] = s.Media.Element
	}
	return out
}
