package viewctl

import (
	"context"
	"fmt"

	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/stage"
	"github.com/block/sortedview/pkg/view"
	"github.com/block/sortedview/serialize/gobcolumn"
	"github.com/block/sortedview/storage/localfs"
)

// Inspect dumps one persisted stream of a stage's demonstration version
// without applying anything, for ad hoc debugging of a viewctl-data
// directory.
type Inspect struct {
	BaseDir string `help:"Local directory holding persisted stage state." default:"./viewctl-data"`
	Stage   string `help:"Stage name." default:"demo"`
	Version int    `help:"Version to read." default:"1"`
	Stream  string `help:"Stream to dump: content, mappings, or updates." enum:"content,mappings,updates" default:"content"`
}

func (i *Inspect) Run() error {
	ctx := context.Background()
	persistence := localfs.New(i.BaseDir)

	switch i.Stream {
	case "content":
		return dumpStream(ctx, persistence, i.Stage, stage.StreamContent, i.Version,
			gobcolumn.New[view.ContentRecord[string, string, string]](),
			func(r view.ContentRecord[string, string, string]) string {
				return fmt.Sprintf("(%s, %s) = %s", r.TargetKey, r.SourceKey, r.Value)
			})
	case "mappings":
		return dumpStream(ctx, persistence, i.Stage, stage.StreamKeyMappings, i.Version,
			gobcolumn.New[view.KeyMapping[string, string]](),
			func(r view.KeyMapping[string, string]) string {
				return fmt.Sprintf("%s -> %s", r.SourceKey, r.TargetKey)
			})
	default:
		return dumpStream(ctx, persistence, i.Stage, stage.StreamUpdates, i.Version,
			gobcolumn.New[view.SourceUpdate[string, string]](),
			func(r view.SourceUpdate[string, string]) string {
				return fmt.Sprintf("%s %s = %s", r.Type, r.Key, r.Value)
			})
	}
}

func dumpStream[T any](ctx context.Context, p *localfs.Store, name string, typ stage.StreamType, version int, ser *gobcolumn.Serializer[T], format func(T) string) error {
	raw, err := p.OpenRead(ctx, name, typ, version)
	if err != nil {
		return err
	}
	cur, err := ser.Read(ctx, raw)
	if err != nil {
		return err
	}
	rows, err := rowio.Drain(cur)
	if err != nil {
		return err
	}
	fmt.Printf("stage %q %s v%d: %d rows\n", name, typ, version, len(rows))
	for _, r := range rows {
		fmt.Printf("  %s\n", format(r))
	}
	return nil
}
