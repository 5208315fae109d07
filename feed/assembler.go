package feed

import (
	"context"
	"log/slog"

	"github.com/use-agent/feedgrab/models"
	"github.com/use-agent/feedgrab/scraper"
)

// AssembleOptions parameterise Assemble.
type AssembleOptions struct {
	Fields models.FieldSet
	Media  MediaOptions
	Target int
}

// Assemble builds one record per handle, in handle order, for at most
// opts.Target handles. Records are never dropped for missing fields. When
// ctx ends mid-way the records built so far are returned.
func Assemble(ctx context.Context, s scraper.Session, handles []scraper.Element, opts AssembleOptions) []models.Record {
	n := len(handles)
	if opts.Target > 0 {
		n = min(n, opts.Target)
	}

	records := make([]models.Record, 0, n)
	for i := range n {
		if err := ctx.Err(); err != nil {
			slog.Warn("assembly interrupted", "assembled", len(records), "of", n, "error", err)
			break
		}
		records = append(records, assembleOne(ctx, s, handles[i], i+1, opts))
	}
	return records
}

func assembleOne(ctx context.Context, s scraper.Session, el scraper.Element, position int, opts AssembleOptions) models.Record {
	f := ExtractFields(ctx, s, el, opts.Fields)
	return models.Record{
		ID:            RecordID(ctx, s, el, opts.Fields.IDAttrs, position),
		Title:         f.Title,
		Image:         f.Image,
		Summary:       f.Summary,
		Source:        f.Source,
		PublishedTime: f.PublishedTime,
		Audio:         ResolveAudio(ctx, s, el, opts.Media),
	}
}
