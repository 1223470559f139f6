package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
	"github.com/zhengshuai-xiao/cdcidx/pkg/s3client"
)

const indexExt = ".cidx"

func cmdChunk() *cli.Command {
	selfFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "index file to write (default SOURCE" + indexExt + "; required for stdin and s3:// sources)",
		},
		&cli.StringFlag{
			Name:  "redis-name",
			Usage: "name of the index in redis (default SOURCE)",
		},
	}

	return &cli.Command{
		Name:      "chunk",
		Action:    chunk,
		Category:  "INDEX",
		Usage:     "Build the chunk index of one source",
		ArgsUsage: "SOURCE",
		Description: `
			Splits SOURCE into content-defined chunks and writes one index entry per chunk.
			SOURCE is a local file, "-" for stdin, or s3://bucket/key.

			Examples:
			$ cdcidx chunk disk.img
			$ cdcidx chunk --digest xxh3 --min-chunk 4KiB --max-chunk 64KiB -o disk.cidx disk.img
			$ cat disk.img | cdcidx chunk -o disk.cidx -
			$ cdcidx chunk --redis localhost:6379/1 --s3-endpoint localhost:9000 --s3-bucket idx disk.img`,
		Flags: expandFlags(selfFlags, paramsFlags(), redisFlags(), s3Flags()),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openSource opens a local path, "-" for stdin, or an s3:// URL.
func openSource(ctx context.Context, c *cli.Context, arg string) (io.ReadCloser, error) {
	if arg == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	u, isS3, err := s3client.ParseSourceURL(arg)
	if err != nil {
		return nil, err
	}
	if isS3 {
		client, err := s3client.NewSourceClient(ctx, c.String("source-endpoint"),
			c.String("s3-access-key"), c.String("s3-secret-key"), c.String("source-region"))
		if err != nil {
			return nil, err
		}
		body, _, err := s3client.OpenSource(ctx, client, u)
		return body, err
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	return f, nil
}

func chunk(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("chunk takes exactly one SOURCE argument, got %d", c.Args().Len())
	}
	source := c.Args().First()

	local := source != "-"
	if _, isS3, _ := s3client.ParseSourceURL(source); isS3 {
		local = false
	}
	t := indexTarget{Out: c.String("out"), RedisName: source}
	if c.IsSet("redis-name") {
		t.RedisName = c.String("redis-name")
	}
	if t.Out == "" && local {
		t.Out = source + indexExt
	}
	if t.Out == "" && c.String("redis") == "" {
		return fmt.Errorf("--out or --redis is required for source %s", source)
	}
	if t.Out != "" {
		t.Object = s3client.ObjectName(c.String("s3-prefix"), filepath.Base(t.Out))
	}

	ix, err := newIndexer(c)
	if err != nil {
		return err
	}
	defer ix.Close()

	ctx, cancel := signalContext()
	defer cancel()

	src, err := openSource(ctx, c, source)
	if err != nil {
		return err
	}
	defer src.Close()

	h, err := ix.Index(ctx, src, t)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", source, err)
	}
	printSummary(c.App.Writer, source, t, h)
	return nil
}

func printSummary(w io.Writer, source string, t indexTarget, h cdc.Header) {
	dest := t.Out
	if dest == "" {
		dest = "redis:" + t.RedisName
	}
	fmt.Fprintf(w, "%s -> %s: %s blocks, target block size %s\n",
		source, dest, humanize.Comma(int64(h.BlockCount)), humanize.IBytes(uint64(h.TargetBlockSize)))
}
