package stage

import (
	"context"
	"fmt"
	"io"

	"github.com/siddontang/loggers"
	"github.com/sirupsen/logrus"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/sortedio"
	"github.com/block/sortedview/pkg/view"
	"github.com/block/sortedview/pkg/view/exec"
	"github.com/block/sortedview/pkg/view/instr"
	"github.com/block/sortedview/pkg/view/merge"
	"github.com/block/sortedview/serialize/gobcolumn"
)

// Serializers bundles the codecs a Stage needs, one per persisted stream.
type Serializers[SK, TK, TV any] struct {
	Mappings rowio.Serializer[view.KeyMapping[SK, TK]]
	Content  rowio.Serializer[view.ContentRecord[TK, SK, TV]]
	Updates  rowio.Serializer[view.SourceUpdate[TK, TV]]
}

// Config wires a Stage's identity, comparators, user Produce function, and
// collaborators. SourceComparator and TargetComparator are required — see
// order.Natural for the default-order helper when SK/TK are cmp.Ordered.
type Config[SK, SV, TK, TV any] struct {
	Name string

	Persistence Persistence
	Temps       rowio.TempStreamFactory
	Serializers Serializers[SK, TK, TV]
	// KeySerializer encodes SK, needed only when this stage has upstreams
	// (the multi-source merger spills the affected-keys set to a temp
	// stream keyed by SK).
	KeySerializer rowio.Serializer[SK]

	SourceComparator order.Comparator[SK]
	TargetComparator order.Comparator[TK]

	Produce           view.Produce[SK, SV, TK, TV]
	PreserveKeyValues exec.PreserveKeyValues[TV]

	SortOptions *sortedio.Options
	Logger      loggers.Advanced
}

// Stage owns one node of the DAG: its persisted streams, its Produce
// function, and its typed links to upstream stages.
type Stage[SK, SV, TK, TV any] struct {
	cfg       Config[SK, SV, TK, TV]
	upstreams []upstreamLink[SK, SV]
	version   int
}

// New constructs a Stage at version 0 (no prior state).
func New[SK, SV, TK, TV any](cfg Config[SK, SV, TK, TV]) *Stage[SK, SV, TK, TV] {
	if cfg.SortOptions == nil {
		cfg.SortOptions = sortedio.NewOptions()
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return &Stage[SK, SV, TK, TV]{cfg: cfg}
}

func (s *Stage[SK, SV, TK, TV]) Name() string { return s.cfg.Name }
func (s *Stage[SK, SV, TK, TV]) Version() int { return s.version }
func (s *Stage[SK, SV, TK, TV]) sealed()      {}

func (s *Stage[SK, SV, TK, TV]) Upstreams() []Handle {
	out := make([]Handle, len(s.upstreams))
	for i, u := range s.upstreams {
		out[i] = u.handle()
	}
	return out
}

// Update performs one single-stage production: it opens prior KeyMappings
// and Content at basedOnVersion, runs the instruction generator and both
// executors, and uploads the resulting streams under basedOnVersion+1.
func (s *Stage[SK, SV, TK, TV]) Update(ctx context.Context, sourceUpdates rowio.Cursor[view.SourceUpdate[SK, SV]], basedOnVersion int) (int, error) {
	priorMappings, err := s.readMappings(ctx, basedOnVersion)
	if err != nil {
		return 0, err
	}
	defer priorMappings.Close()
	priorContent, err := s.readContent(ctx, basedOnVersion)
	if err != nil {
		return 0, err
	}
	defer priorContent.Close()

	contentInstrSorter := sortedio.New[view.ContentInstruction[TK, SK, TV]](
		contentInstructionComparator[TK, SK, TV](s.cfg.TargetComparator, s.cfg.SourceComparator),
		gobcolumn.New[view.ContentInstruction[TK, SK, TV]](),
		s.cfg.Temps, s.cfg.SortOptions, s.cfg.Name+"-content-instr",
	)
	defer contentInstrSorter.Close()
	mappingInstrSorter := sortedio.New[view.KeyMappingInstruction[SK, TK]](
		mappingInstructionComparator[SK, TK](s.cfg.SourceComparator, s.cfg.TargetComparator),
		gobcolumn.New[view.KeyMappingInstruction[SK, TK]](),
		s.cfg.Temps, s.cfg.SortOptions, s.cfg.Name+"-mapping-instr",
	)
	defer mappingInstrSorter.Close()

	if err := instr.Generate(ctx, s.cfg.SourceComparator, priorMappings, sourceUpdates, s.cfg.Produce, contentInstrSorter, mappingInstrSorter); err != nil {
		return 0, fmt.Errorf("stage %q: %w", s.cfg.Name, err)
	}
	if err := contentInstrSorter.Finish(ctx); err != nil {
		return 0, err
	}
	if err := mappingInstrSorter.Finish(ctx); err != nil {
		return 0, err
	}
	contentInstrCur, err := contentInstrSorter.Read(ctx)
	if err != nil {
		return 0, err
	}
	defer contentInstrCur.Close()
	mappingInstrCur, err := mappingInstrSorter.Read(ctx)
	if err != nil {
		return 0, err
	}
	defer mappingInstrCur.Close()

	newVersion := basedOnVersion + 1

	mappingsStream, err := s.cfg.Temps.New(s.cfg.Name + "-new-mappings")
	if err != nil {
		return 0, err
	}
	mappingsUploaded := false
	defer func() {
		if !mappingsUploaded {
			mappingsStream.Close()
		}
	}()
	mappingsSink := newBufferedSink[view.KeyMapping[SK, TK]](s.cfg.Serializers.Mappings.Write(mappingsStream), s.cfg.SortOptions.RowsPerGroup)
	if err := exec.ExecuteMappings(ctx, s.cfg.SourceComparator, s.cfg.TargetComparator, priorMappings, mappingInstrCur, mappingsSink.Add); err != nil {
		return 0, fmt.Errorf("stage %q: %w", s.cfg.Name, err)
	}
	if err := mappingsSink.Finish(ctx); err != nil {
		return 0, err
	}

	contentStream, err := s.cfg.Temps.New(s.cfg.Name + "-new-content")
	if err != nil {
		return 0, err
	}
	contentUploaded := false
	defer func() {
		if !contentUploaded {
			contentStream.Close()
		}
	}()
	updatesStream, err := s.cfg.Temps.New(s.cfg.Name + "-new-updates")
	if err != nil {
		return 0, err
	}
	updatesUploaded := false
	defer func() {
		if !updatesUploaded {
			updatesStream.Close()
		}
	}()
	contentSink := newBufferedSink[view.ContentRecord[TK, SK, TV]](s.cfg.Serializers.Content.Write(contentStream), s.cfg.SortOptions.RowsPerGroup)
	updatesSink := newBufferedSink[view.SourceUpdate[TK, TV]](s.cfg.Serializers.Updates.Write(updatesStream), s.cfg.SortOptions.RowsPerGroup)

	opts := exec.ContentOptions[TK, TV]{PreserveKeyValues: s.cfg.PreserveKeyValues}
	if err := exec.ExecuteContent(ctx, s.cfg.TargetComparator, s.cfg.SourceComparator, priorContent, contentInstrCur, contentSink.Add, updatesSink.Add, opts); err != nil {
		return 0, fmt.Errorf("stage %q: %w", s.cfg.Name, err)
	}
	if err := contentSink.Finish(ctx); err != nil {
		return 0, err
	}
	if err := updatesSink.Finish(ctx); err != nil {
		return 0, err
	}

	// Upload takes ownership of each stream and closes it, on every
	// outcome; the deferred closes above only fire for a stream Upload
	// never got to see.
	if err := s.cfg.Persistence.Upload(ctx, s.cfg.Name, StreamKeyMappings, newVersion, mappingsStream); err != nil {
		mappingsUploaded = true
		return 0, fmt.Errorf("stage %q: upload mappings v%d: %w", s.cfg.Name, newVersion, err)
	}
	mappingsUploaded = true
	if err := s.cfg.Persistence.Upload(ctx, s.cfg.Name, StreamContent, newVersion, contentStream); err != nil {
		contentUploaded = true
		return 0, fmt.Errorf("stage %q: upload content v%d: %w", s.cfg.Name, newVersion, err)
	}
	contentUploaded = true
	if err := s.cfg.Persistence.Upload(ctx, s.cfg.Name, StreamUpdates, newVersion, updatesStream); err != nil {
		updatesUploaded = true
		return 0, fmt.Errorf("stage %q: upload updates v%d: %w", s.cfg.Name, newVersion, err)
	}
	updatesUploaded = true

	s.version = newVersion
	s.cfg.Logger.Infof("stage %q: updated version %d -> %d", s.cfg.Name, basedOnVersion, newVersion)
	return newVersion, nil
}

// UpdateFromSources drives one stage's share of a registry-wide
// UpdateTargets pass: it reconstructs a single ordered source-update stream
// from every upstream's version basedOnVersion+1 Updates+Content (the
// version each upstream produced earlier in the same pass) via the
// multi-source merger, then calls Update on this stage's basedOnVersion.
func (s *Stage[SK, SV, TK, TV]) UpdateFromSources(ctx context.Context, basedOnVersion int) (int, error) {
	if len(s.upstreams) == 0 {
		return s.Update(ctx, rowio.Empty[view.SourceUpdate[SK, SV]](), basedOnVersion)
	}
	// Every stage in a DAG shares the same version counter: upstreams in
	// topoOrder have already advanced to basedOnVersion+1 by the time this
	// runs, and that is the version whose Updates/Content this stage must
	// consume to advance in lockstep.
	feeders := make([]merge.Feeder[SK, SV], len(s.upstreams))
	for i, u := range s.upstreams {
		feeders[i] = u.feeder(basedOnVersion + 1)
	}
	merged, err := merge.Merge(ctx, feeders, merge.Options[SK]{
		Comparator:    s.cfg.SourceComparator,
		KeySerializer: s.cfg.KeySerializer,
		Temps:         s.cfg.Temps,
	})
	if err != nil {
		return 0, fmt.Errorf("stage %q: %w", s.cfg.Name, err)
	}
	defer merged.Close()
	return s.Update(ctx, merged, basedOnVersion)
}

// closingCursor pairs a Serializer-produced Cursor with the raw Stream it
// reads from: Serializer.Read never closes the stream it is handed (a
// Sorter reopens the same spilled stream for multiple reads and manages
// its own lifetime), so whoever opens a stream for a single one-shot read,
// as every method below does, must close it itself once the cursor is
// done. Close does both in one call so callers only need one defer.
type closingCursor[T any] struct {
	rowio.Cursor[T]
	stream rowio.Stream
}

func (c *closingCursor[T]) Close() error {
	err := c.Cursor.Close()
	if cerr := c.stream.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Stage[SK, SV, TK, TV]) readMappings(ctx context.Context, version int) (rowio.Cursor[view.KeyMapping[SK, TK]], error) {
	stream, err := s.cfg.Persistence.OpenRead(ctx, s.cfg.Name, StreamKeyMappings, version)
	if err != nil {
		return nil, fmt.Errorf("stage %q: open mappings v%d: %w", s.cfg.Name, version, err)
	}
	cur, err := s.cfg.Serializers.Mappings.Read(ctx, stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("stage %q: read mappings v%d: %w", s.cfg.Name, version, err)
	}
	return &closingCursor[view.KeyMapping[SK, TK]]{Cursor: cur, stream: stream}, nil
}

func (s *Stage[SK, SV, TK, TV]) readContent(ctx context.Context, version int) (rowio.Cursor[view.ContentRecord[TK, SK, TV]], error) {
	stream, err := s.cfg.Persistence.OpenRead(ctx, s.cfg.Name, StreamContent, version)
	if err != nil {
		return nil, fmt.Errorf("stage %q: open content v%d: %w", s.cfg.Name, version, err)
	}
	cur, err := s.cfg.Serializers.Content.Read(ctx, stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("stage %q: read content v%d: %w", s.cfg.Name, version, err)
	}
	return &closingCursor[view.ContentRecord[TK, SK, TV]]{Cursor: cur, stream: stream}, nil
}

// ReadUpdates streams this stage's Updates at version for downstream
// consumption. The returned Cursor's Close also closes the backing stream.
func (s *Stage[SK, SV, TK, TV]) ReadUpdates(ctx context.Context, version int) (rowio.Cursor[view.SourceUpdate[TK, TV]], error) {
	stream, err := s.cfg.Persistence.OpenRead(ctx, s.cfg.Name, StreamUpdates, version)
	if err != nil {
		return nil, fmt.Errorf("stage %q: open updates v%d: %w", s.cfg.Name, version, err)
	}
	cur, err := s.cfg.Serializers.Updates.Read(ctx, stream)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("stage %q: read updates v%d: %w", s.cfg.Name, version, err)
	}
	return &closingCursor[view.SourceUpdate[TK, TV]]{Cursor: cur, stream: stream}, nil
}
