// Package viewctl implements the viewctl command's demonstration stage: a
// single-source identity pass (SK=TK=string, SV=TV=string, Produce
// republishes each value under its own key unchanged) driven against the
// local-file persistence adapter, for manual inspection and scripted use of
// the engine from the command line.
package viewctl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/block/sortedview/pkg/order"
	"github.com/block/sortedview/pkg/rowio"
	"github.com/block/sortedview/pkg/stage"
	"github.com/block/sortedview/pkg/view"
	"github.com/block/sortedview/serialize/gobcolumn"
	"github.com/block/sortedview/storage/localfs"
)

// Update applies a source-updates file to a stage and prints the Content
// that results.
type Update struct {
	BaseDir string `help:"Local directory holding persisted stage state." default:"./viewctl-data"`
	Stage   string `help:"Stage name." default:"demo"`
	Version int    `help:"Version to apply the updates on top of." default:"0"`
	File    string `arg:"" help:"Path to a newline-delimited 'Type<TAB>Key<TAB>Value' source-updates file."`
}

func (u *Update) Run() error {
	ctx := context.Background()

	updates, err := readUpdates(u.File)
	if err != nil {
		return err
	}

	persistence := localfs.New(u.BaseDir)
	st := stage.New(stage.Config[string, string, string, string]{
		Name:        u.Stage,
		Persistence: persistence,
		Temps:       localfs.NewTempFactory(""),
		Serializers: stage.Serializers[string, string, string]{
			Mappings: gobcolumn.New[view.KeyMapping[string, string]](),
			Content:  gobcolumn.New[view.ContentRecord[string, string, string]](),
			Updates:  gobcolumn.New[view.SourceUpdate[string, string]](),
		},
		KeySerializer:    gobcolumn.New[string](),
		SourceComparator: order.Natural[string](),
		TargetComparator: order.Natural[string](),
		Produce:          identityProduce,
	})

	newVersion, err := st.Update(ctx, rowio.NewSliceCursor(updates), u.Version)
	if err != nil {
		return fmt.Errorf("update stage %q: %w", u.Stage, err)
	}

	content, err := persistence.OpenRead(ctx, u.Stage, stage.StreamContent, newVersion)
	if err != nil {
		return err
	}
	cur, err := gobcolumn.New[view.ContentRecord[string, string, string]]().Read(ctx, content)
	if err != nil {
		return err
	}
	rows, err := rowio.Drain(cur)
	if err != nil {
		return err
	}

	fmt.Printf("stage %q: version %d -> %d\n", u.Stage, u.Version, newVersion)
	for _, r := range rows {
		fmt.Printf("  (%s, %s) = %s\n", r.TargetKey, r.SourceKey, r.Value)
	}
	return nil
}

func identityProduce(ctx context.Context, key string, values rowio.Cursor[string]) (rowio.Cursor[view.TargetPair[string, string]], error) {
	var out []view.TargetPair[string, string]
	for values.Valid() {
		out = append(out, view.TargetPair[string, string]{Key: key, Value: values.Value()})
		if err := values.Next(); err != nil {
			return nil, err
		}
	}
	return rowio.NewSliceCursor(out), nil
}

func readUpdates(path string) ([]view.SourceUpdate[string, string], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var updates []view.SourceUpdate[string, string]
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed line %q: want Type<TAB>Key[<TAB>Value]", line)
		}
		var typ view.UpdateType
		switch fields[0] {
		case "Add":
			typ = view.Add
		case "Update":
			typ = view.Update
		case "Delete":
			typ = view.Delete
		default:
			return nil, fmt.Errorf("unknown update type %q in line %q", fields[0], line)
		}
		var value string
		if len(fields) == 3 {
			value = fields[2]
		}
		updates = append(updates, view.SourceUpdate[string, string]{Type: typ, Key: fields[1], Value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return updates, nil
}
