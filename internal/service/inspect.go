package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/heapql/internal/heap"
	"github.com/heapql/internal/oql"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/model"
	"github.com/heapql/pkg/telemetry"
)

// Inspect describes the object with the given ID (decimal or 0x hex):
// its fields, referrers, referees and paths from GC roots. Lists are capped
// at the configured result limit.
func (s *Service) Inspect(ctx context.Context, snapshot, objectID string) (detail *model.ObjectDetail, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.Inspect", telemetry.AttrSnapshot.String(snapshot))
	defer func() { telemetry.EndSpan(span, err) }()

	id, err := strconv.ParseUint(strings.TrimSpace(objectID), 0, 64)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid object id: "+objectID, err)
	}
	snap, err := s.snapshots.Get(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	h := snap.Heap
	t := h.FindThing(id)
	if t == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "object not found: "+objectID)
	}

	limit := s.config.Engine.ResultLimit
	detail = &model.ObjectDetail{
		ID:           strconv.FormatUint(id, 10),
		Text:         oql.FormatText(t),
		HTML:         oql.FormatHTML(t),
		Size:         t.Size(),
		RetainedSize: h.RetainedSize(t),
		Fields:       fieldRows(t),
		Referrers:    renderThings(h.Referrers(t), limit),
		Referees:     renderThings(h.Referees(t), limit),
	}
	if c := t.Class(); c != nil {
		detail.ClassName = c.Name()
	}
	if r := h.FindRoot(t); r != nil {
		detail.Root = r.Description()
	}

	maxPaths := s.config.Engine.MaxLivePaths
	if maxPaths <= 0 {
		maxPaths = heap.DefaultMaxPaths
	}
	for _, chain := range h.LivePaths(t, false, maxPaths) {
		detail.Paths = append(detail.Paths, renderRow(chain))
	}
	return detail, nil
}

func fieldRows(t heap.Thing) []model.FieldRow {
	var values []heap.FieldValue
	static := false
	switch x := t.(type) {
	case *heap.Object:
		values = x.Fields()
	case *heap.JavaClass:
		values = x.StaticFields()
		static = true
	case *heap.ObjectArray:
		rows := make([]model.FieldRow, 0, x.Length())
		for i, e := range x.Elements() {
			rows = append(rows, elementRow(i, "Object", thingValue(e)))
		}
		return rows
	case *heap.PrimitiveArray:
		rows := make([]model.FieldRow, 0, x.Length())
		for i, v := range x.Values() {
			rows = append(rows, elementRow(i, x.ElementType().Name(), v))
		}
		return rows
	}
	rows := make([]model.FieldRow, 0, len(values))
	for _, fv := range values {
		rows = append(rows, model.FieldRow{
			Name:   fv.Field.Name,
			Type:   fv.Field.Type.Name(),
			Static: static,
			Text:   oql.FormatText(fv.Value),
			HTML:   oql.FormatHTML(fv.Value),
		})
	}
	return rows
}

func elementRow(i int, typ string, v interface{}) model.FieldRow {
	return model.FieldRow{
		Name: "[" + strconv.Itoa(i) + "]",
		Type: typ,
		Text: oql.FormatText(v),
		HTML: oql.FormatHTML(v),
	}
}

// thingValue turns a nil Thing into an untyped nil so it renders as null.
func thingValue(t heap.Thing) interface{} {
	if t == nil {
		return nil
	}
	return t
}

func renderThings(things []heap.Thing, limit int) []model.ResultRow {
	if limit > 0 && len(things) > limit {
		things = things[:limit]
	}
	rows := make([]model.ResultRow, 0, len(things))
	for _, t := range things {
		rows = append(rows, renderRow(t))
	}
	return rows
}
