package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/cdcidx/internal"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
	"github.com/zhengshuai-xiao/cdcidx/pkg/index"
)

func cmdInspect() *cli.Command {
	selfFlags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "entries",
			Usage: "print every entry",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "read the index NAME from redis instead of a file",
		},
		&cli.StringFlag{
			Name:  "redis-prefix",
			Value: "cdcidx",
			Usage: "key prefix of indexes stored in redis",
		},
	}

	return &cli.Command{
		Name:      "inspect",
		Action:    inspect,
		Category:  "INSPECT",
		Usage:     "Show the header and chunk statistics of an index",
		ArgsUsage: "INDEX",
		Description: `
			Reads a finalized index and reports its header, chunk length distribution and how
			many chunks share a strong digest. When chunking parameters are given the chunk
			lengths are checked against them.

			Examples:
			$ cdcidx inspect disk.img.cidx
			$ cdcidx inspect --entries --min-chunk 4KiB --max-chunk 64KiB disk.cidx
			$ cdcidx inspect --redis localhost:6379/1 disk.img`,
		Flags: expandFlags(selfFlags, paramsFlags()),
	}
}

type indexStats struct {
	Blocks    int
	Bytes     uint64
	MinLen    uint32
	MaxLen    uint32
	UniqueLen uint64
	Unique    int
}

func summarize(idx *index.Index) indexStats {
	st := indexStats{Blocks: len(idx.Entries), Bytes: idx.Size()}
	seen := internal.NewSet[cdc.Digest]()
	for i, e := range idx.Entries {
		if i == 0 || e.Length < st.MinLen {
			st.MinLen = e.Length
		}
		if e.Length > st.MaxLen {
			st.MaxLen = e.Length
		}
		if seen.Add(e.Strong) {
			st.UniqueLen += uint64(e.Length)
		}
	}
	st.Unique = seen.Len()
	return st
}

func loadIndex(c *cli.Context, name string) (*index.Index, error) {
	addr := c.String("redis")
	if addr == "" {
		return index.Open(name)
	}
	rdb, err := index.NewRedisClient(addr, 0)
	if err != nil {
		return nil, err
	}
	defer rdb.Close()
	return index.ReadRedis(context.Background(), rdb, c.String("redis-prefix"), name)
}

func inspect(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("inspect takes exactly one INDEX argument, got %d", c.Args().Len())
	}
	idx, err := loadIndex(c, c.Args().First())
	if err != nil {
		return err
	}

	if paramsGiven(c) {
		p, err := paramsFromContext(c)
		if err != nil {
			return err
		}
		if err := idx.Validate(p); err != nil {
			return fmt.Errorf("index does not match parameters: %w", err)
		}
	}

	printIndex(c.App.Writer, c.Args().First(), idx, c.Bool("entries"))
	return nil
}

func printIndex(w io.Writer, name string, idx *index.Index, entries bool) {
	st := summarize(idx)
	fmt.Fprintf(w, "index:             %s\n", name)
	fmt.Fprintf(w, "target block size: %s\n", humanize.IBytes(uint64(idx.Header.TargetBlockSize)))
	fmt.Fprintf(w, "blocks:            %s\n", humanize.Comma(int64(st.Blocks)))
	fmt.Fprintf(w, "source size:       %s (%d bytes)\n", humanize.IBytes(st.Bytes), st.Bytes)
	if st.Blocks > 0 {
		fmt.Fprintf(w, "block length:      min %s, avg %s, max %s\n",
			humanize.IBytes(uint64(st.MinLen)), humanize.IBytes(st.Bytes/uint64(st.Blocks)), humanize.IBytes(uint64(st.MaxLen)))
		fmt.Fprintf(w, "unique blocks:     %s (%s, %.2f%% of source)\n",
			humanize.Comma(int64(st.Unique)), humanize.IBytes(st.UniqueLen), 100*float64(st.UniqueLen)/float64(st.Bytes))
	}
	if !entries {
		return
	}
	fmt.Fprintf(w, "%12s %10s %-32s %s\n", "OFFSET", "LENGTH", "STRONG", "WEAK")
	for _, e := range idx.Entries {
		weak := cdc.FormatWeak(e.Weak)
		fmt.Fprintf(w, "%12d %10d %s %s\n", e.Offset, e.Length, e.Strong, weak[:])
	}
}
