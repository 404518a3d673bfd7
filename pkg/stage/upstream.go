package stage

import (
	"context"

	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/view"
	"github.com/block/sortedview/pkg/view/merge"
)

// upstreamLink type-erases one upstream *Stage[USK,USV,SK,SV] down to what
// the downstream stage — whose own (SK,SV) types are fixed — needs: its
// DAG Handle, and a merge.Feeder built against a given version.
type upstreamLink[SK, SV any] interface {
	handle() Handle
	feeder(version int) merge.Feeder[SK, SV]
}

type typedUpstream[USK, USV, SK, SV any] struct {
	up *Stage[USK, USV, SK, SV]
}

// AddUpstream links up as a feeder of down. up's own (TK,TV) must equal
// down's (SK,SV) — the type system enforces this at the call site, so the
// DAG is a set of lookups between owned nodes rather than cyclic strong
// references.
func AddUpstream[USK, USV, SK, SV, TK, TV any](down *Stage[SK, SV, TK, TV], up *Stage[USK, USV, SK, SV]) {
	down.upstreams = append(down.upstreams, &typedUpstream[USK, USV, SK, SV]{up: up})
}

func (u *typedUpstream[USK, USV, SK, SV]) handle() Handle { return u.up }

func (u *typedUpstream[USK, USV, SK, SV]) feeder(version int) merge.Feeder[SK, SV] {
	up := u.up
	return merge.Feeder[SK, SV]{
		Updates: func(ctx context.Context) (rowio.Cursor[view.SourceUpdate[SK, SV]], error) {
			return up.ReadUpdates(ctx, version)
		},
		Content: func(ctx context.Context) (rowio.Cursor[merge.ContentEntry[SK, SV]], error) {
			cur, err := up.readContent(ctx, version)
			if err != nil {
				return nil, err
			}
			return &contentProjection[USK, SK, SV]{inner: cur}, nil
		},
	}
}

// contentProjection strips an upstream ContentRecord[TK,SK,TV] (where TK,TV
// are this downstream's SK,SV) down to the (TargetKey, Value) pair the
// merger's promoted-from-content path needs, discarding upstream
// provenance (its own SourceKey, of no interest downstream).
type contentProjection[USK, TK, TV any] struct {
	inner rowio.Cursor[view.ContentRecord[TK, USK, TV]]
}

func (p *contentProjection[USK, TK, TV]) Valid() bool { return p.inner.Valid() }

func (p *contentProjection[USK, TK, TV]) Value() merge.ContentEntry[TK, TV] {
	r := p.inner.Value()
	return merge.ContentEntry[TK, TV]{TargetKey: r.TargetKey, Value: r.Value}
}

func (p *contentProjection[USK, TK, TV]) Next() error  { return p.inner.Next() }
func (p *contentProjection[USK, TK, TV]) Close() error { return p.inner.Close() }
