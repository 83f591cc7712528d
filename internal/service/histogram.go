package service

import (
	"context"
	"sort"

	"github.com/google/pprof/profile"

	"github.com/heapql/internal/heap"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/filter"
	"github.com/heapql/pkg/model"
	"github.com/heapql/pkg/parallel"
)

// ClassHistogram returns instance counts and shallow bytes per class,
// largest first. Classes without instances are omitted. A non-empty category
// ("jdk", "application", ...) restricts the histogram to that category.
func (s *Service) ClassHistogram(ctx context.Context, snapshot, category string) ([]model.ClassHistogramEntry, error) {
	want := filter.CategoryUnknown
	if category != "" {
		c, ok := filter.ParseCategory(category)
		if !ok {
			return nil, apperrors.New(apperrors.CodeInvalidInput, "unknown class category: "+category)
		}
		want = c
	}

	snap, err := s.snapshots.Get(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	pool := parallel.DefaultPoolConfig().WithWorkers(s.config.Engine.Parallelism)
	entries, err := parallel.Map(ctx, pool, snap.Heap.Classes(), func(_ context.Context, _ int, c *heap.JavaClass) (model.ClassHistogramEntry, error) {
		e := model.ClassHistogramEntry{
			ClassName: c.Name(),
			Category:  s.classes.Classify(c.Name()).String(),
			Instances: len(c.Instances()),
		}
		for _, inst := range c.Instances() {
			e.ShallowBytes += inst.Size()
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	out := entries[:0]
	for _, e := range entries {
		if e.Instances == 0 || (want != filter.CategoryUnknown && e.Category != want.String()) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ShallowBytes != out[j].ShallowBytes {
			return out[i].ShallowBytes > out[j].ShallowBytes
		}
		return out[i].ClassName < out[j].ClassName
	})
	return out, nil
}

// HistogramProfile converts a class histogram into a pprof profile with an
// instance count and a shallow size per class, so it can be browsed with
// "go tool pprof". Each class is a sample whose leaf frame is the class and
// whose caller frame is its category.
func HistogramProfile(snapshot string, entries []model.ClassHistogramEntry) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "instances", Unit: "count"},
			{Type: "space", Unit: "bytes"},
		},
		DefaultSampleType: "space",
		Comments:          []string{"class histogram of " + snapshot},
	}
	categories := make(map[string]*profile.Location)
	category := func(name string) *profile.Location {
		if loc, ok := categories[name]; ok {
			return loc
		}
		id := uint64(len(p.Function) + 1)
		fn := &profile.Function{ID: id, Name: name, SystemName: name}
		loc := &profile.Location{ID: uint64(len(p.Location) + 1), Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		categories[name] = loc
		return loc
	}
	for _, e := range entries {
		parent := category(e.Category)
		fn := &profile.Function{ID: uint64(len(p.Function) + 1), Name: e.ClassName, SystemName: e.ClassName}
		loc := &profile.Location{ID: uint64(len(p.Location) + 1), Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc, parent},
			Value:    []int64{int64(e.Instances), e.ShallowBytes},
		})
	}
	return p
}
