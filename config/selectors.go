package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/feedgrab/models"
	"gopkg.in/yaml.v3"
)

// LoadSelectors returns the default selector set overlaid with the YAML
// file at path. An empty path or a missing file yields the defaults.
// Keys absent from the file keep their default values.
//
// Example file:
//
//	wrapper: ".flow_item_wrapper"
//	fields:
//	  title: {selector: ".title"}
//	  image: {selector: ".image img", attr: "src"}
//	media:
//	  control: ".podcast-player .play-pause-btn"
func LoadSelectors(path string) (*models.Selectors, error) {
	sel := models.DefaultSelectors()
	if path == "" {
		return &sel, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &sel, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}

	// Unmarshalling into the populated defaults only replaces keys that
	// are present in the document.
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file: %w", err)
	}

	if err := ValidateSelectors(&sel); err != nil {
		return nil, err
	}
	return &sel, nil
}

// ValidateSelectors compiles every selector in sel and reports the first
// one that is not valid CSS as an INVALID_INPUT error.
func ValidateSelectors(sel *models.Selectors) error {
	if sel == nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "selectors are required", nil)
	}
	all := sel.All()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		expr := all[name]
		if expr == "" {
			return models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("selector %s is empty", name), nil)
		}
		if _, err := cascadia.ParseGroup(expr); err != nil {
			return models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("selector %s (%q) is not valid CSS", name, expr), err)
		}
	}
	return nil
}
