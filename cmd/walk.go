package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/cdcidx/pkg/daemon"
	"github.com/zhengshuai-xiao/cdcidx/pkg/s3client"
)

func cmdWalk() *cli.Command {
	selfFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "directory the indexes are written to, mirroring the source tree",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "stop at the first file that cannot be indexed",
		},
		&cli.BoolFlag{
			Name:    "background",
			Aliases: []string{"d"},
			Usage:   "run in background, requires --logdir",
		},
	}

	return &cli.Command{
		Name:      "walk",
		Action:    walk,
		Category:  "INDEX",
		Usage:     "Build one chunk index per regular file under a directory",
		ArgsUsage: "DIR",
		Description: `
			Every regular file DIR/path gets its index at OUT/path.cidx. Symlinks and other
			special files are skipped. With --redis the index name is the path relative to DIR.

			Examples:
			$ cdcidx walk --out /tmp/idx /data
			$ cdcidx --logdir /var/log/cdcidx walk -d --out /tmp/idx /data`,
		Flags: expandFlags(selfFlags, paramsFlags(), redisFlags(), s3Flags()),
	}
}

type walkResult struct {
	Files  int
	Failed int
	Blocks uint64
	Bytes  uint64
}

func walk(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("walk takes exactly one DIR argument, got %d", c.Args().Len())
	}
	root, err := filepath.Abs(c.Args().First())
	if err != nil {
		return err
	}
	if info, err := os.Stat(root); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory, use chunk for a single file", root)
	}
	outDir, err := filepath.Abs(c.String("out"))
	if err != nil {
		return err
	}

	if shouldExit, err := handleBackgroundMode(c); err != nil {
		return fmt.Errorf("failed to start in background: %w", err)
	} else if shouldExit {
		return nil
	}

	ix, err := newIndexer(c)
	if err != nil {
		return err
	}
	defer ix.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := walkTree(ctx, ix, root, outDir, c.String("s3-prefix"), c.Bool("fail-fast"))
	fmt.Fprintf(c.App.Writer, "%s: %d files indexed, %d failed, %s blocks, %s\n",
		root, res.Files, res.Failed, humanize.Comma(int64(res.Blocks)), humanize.IBytes(res.Bytes))
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d files could not be indexed", res.Failed, res.Files+res.Failed)
	}
	return nil
}

// walkTree indexes every regular file under root, skipping outDir when it
// lies inside root. When outDir is root itself the indexes sit next to their
// sources and existing index files are skipped instead.
func walkTree(ctx context.Context, ix *indexer, root, outDir, s3Prefix string, failFast bool) (walkResult, error) {
	var res walkResult
	root, outDir = filepath.Clean(root), filepath.Clean(outDir)
	inPlace := root == outDir
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if failFast || path == root {
				return err
			}
			logger.Warnf("skipping %s: %v", path, err)
			res.Failed++
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if !inPlace && path == outDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			logger.Debugf("skipping non-regular file %s", path)
			return nil
		}
		if inPlace && strings.HasSuffix(path, indexExt) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		size, err := indexFile(ctx, ix, path, rel, outDir, s3Prefix, &res)
		if err != nil {
			if errors.Is(err, context.Canceled) || failFast {
				return err
			}
			logger.Errorf("failed to index %s: %v", path, err)
			res.Failed++
			return nil
		}
		res.Files++
		res.Bytes += size
		return nil
	})
	return res, err
}

func indexFile(ctx context.Context, ix *indexer, path, rel, outDir, s3Prefix string, res *walkResult) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	relIndex := rel + indexExt
	t := indexTarget{
		Out:       filepath.Join(outDir, relIndex),
		RedisName: filepath.ToSlash(rel),
		Object:    s3client.ObjectName(s3Prefix, filepath.ToSlash(relIndex)),
	}
	h, err := ix.Index(ctx, f, t)
	if err != nil {
		return 0, err
	}
	res.Blocks += uint64(h.BlockCount)

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	logger.Infof("indexed %s: %d blocks", rel, h.BlockCount)
	return uint64(info.Size()), nil
}

// handleBackgroundMode daemonizes the walk when --background is set. It
// returns true in the parent, which should exit.
func handleBackgroundMode(c *cli.Context) (shouldExit bool, err error) {
	if daemon.WasReborn() {
		daemon.UnsetMark()
		return false, nil
	}
	if !c.Bool("background") {
		return false, nil
	}

	logDir := c.String("logdir")
	if logDir == "" {
		return false, fmt.Errorf("logdir must be specified when running in background mode")
	}
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return false, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	pidFile := filepath.Join(logDir, "cdcidx-walk.pid")
	if err := daemon.CheckPidFile(pidFile); err != nil {
		return false, err
	}

	// the child must not daemonize again
	var newArgs []string
	for _, arg := range os.Args {
		if arg != "--background" && arg != "-d" && !strings.HasPrefix(arg, "--background=") {
			newArgs = append(newArgs, arg)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return false, err
	}
	d, err := daemon.Daemonize(pidFile, filepath.Join(logDir, "cdcidx-walk.out"), wd, newArgs)
	if err != nil {
		return false, fmt.Errorf("unable to run in background: %w", err)
	}
	if d != nil {
		fmt.Fprintf(c.App.Writer, "walk running in background as PID %d, logs in %s\n", d.Pid, logDir)
	}
	return d != nil, nil
}
