package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/cdcidx/pkg/index"
)

func cmdVerify() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Action:    verify,
		Category:  "INSPECT",
		Usage:     "Check a source against its index",
		ArgsUsage: "SOURCE [INDEX]",
		Description: `
			Re-reads SOURCE and checks the strong digest and weak checksum of every indexed
			chunk, and that the source ends where the last chunk ends. INDEX defaults to
			SOURCE.cidx. Use the --digest the index was built with.

			Examples:
			$ cdcidx verify disk.img
			$ cdcidx verify --digest xxh3 disk.img disk.cidx`,
		Flags: expandFlags(paramsFlags(), s3Flags()),
	}
}

func verify(c *cli.Context) error {
	if n := c.Args().Len(); n < 1 || n > 2 {
		return fmt.Errorf("verify takes SOURCE and an optional INDEX, got %d arguments", n)
	}
	source := c.Args().Get(0)
	indexPath := c.Args().Get(1)
	if indexPath == "" {
		indexPath = source + indexExt
	}

	idx, err := index.Open(indexPath)
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
	digest, err := digestFromContext(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	src, err := openSource(ctx, c, source)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := index.Verify(src, idx, digest); err != nil {
		return fmt.Errorf("%s does not match %s: %w", source, indexPath, err)
	}
	fmt.Fprintf(c.App.Writer, "%s: %d blocks OK\n", source, len(idx.Entries))
	return nil
}
