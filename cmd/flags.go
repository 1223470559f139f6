package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
	"github.com/zhengshuai-xiao/cdcidx/pkg/s3client"
)

func expandFlags(compoundFlags ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, fs := range compoundFlags {
		flags = append(flags, fs...)
	}
	return flags
}

func paramsFlags() []cli.Flag {
	d := cdc.DefaultParams()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML file with chunking parameters; flags given explicitly override it",
		},
		&cli.StringFlag{
			Name:  "min-chunk",
			Value: humanize.IBytes(uint64(d.MinChunk)),
			Usage: "smallest chunk except the last one of a source",
		},
		&cli.StringFlag{
			Name:  "max-chunk",
			Value: humanize.IBytes(uint64(d.MaxChunk)),
			Usage: "chunks are cut at this size when no natural boundary is found",
		},
		&cli.IntFlag{
			Name:  "window",
			Value: d.WindowSize,
			Usage: "rolling checksum window in bytes",
		},
		&cli.UintFlag{
			Name:  "divisor",
			Value: uint(d.AvgDivisor),
			Usage: "boundary when checksum % divisor == remainder; sets the average chunk size",
		},
		&cli.UintFlag{
			Name:  "remainder",
			Value: uint(d.BoundaryRemainder),
			Usage: "boundary remainder, must be below divisor",
		},
		&cli.StringFlag{
			Name:  "bufsize",
			Value: humanize.IBytes(uint64(d.BufSize)),
			Usage: "read buffer size; does not move boundaries",
		},
		&cli.StringFlag{
			Name:  "digest",
			Value: cdc.DefaultDigest,
			Usage: fmt.Sprintf("strong digest of each chunk: %v", cdc.DigestNames()),
		},
	}
}

func redisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "redis",
			Usage: "also store the index in redis at this address (host:port[/db], cluster or sentinel list)",
		},
		&cli.StringFlag{
			Name:  "redis-prefix",
			Value: "cdcidx",
			Usage: "key prefix of indexes stored in redis",
		},
		&cli.IntFlag{
			Name:  "redis-retries",
			Value: 3,
			Usage: "redis command retries, 0 disables retries",
		},
		&cli.DurationFlag{
			Name:  "lock-timeout",
			Value: 30 * time.Second,
			Usage: "how long to wait for another writer of the same redis index",
		},
	}
}

func s3Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "s3-endpoint",
			Usage: "upload finalized index files to this S3 endpoint (host:port)",
		},
		&cli.StringFlag{
			Name:  "s3-bucket",
			Usage: "bucket finalized index files are uploaded to",
		},
		&cli.StringFlag{
			Name:  "s3-prefix",
			Usage: "object key prefix for uploaded index files",
		},
		&cli.BoolFlag{
			Name:  "s3-secure",
			Usage: "use https for the S3 endpoint",
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			EnvVars: []string{"S3_ACCESS_KEY"},
			Usage:   "S3 access key",
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			EnvVars: []string{"S3_SECRET_KEY"},
			Usage:   "S3 secret key",
		},
		&cli.StringFlag{
			Name:  "source-endpoint",
			Usage: "endpoint URL for s3:// sources, e.g. http://127.0.0.1:9000; empty uses AWS",
		},
		&cli.StringFlag{
			Name:  "source-region",
			Value: s3client.DefaultRegion,
			Usage: "region for s3:// sources",
		},
	}
}

func parseSize(name, s string) (int, error) {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", name, s, err)
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("--%s %s is too large", name, s)
	}
	return int(v), nil
}

// paramsFromContext starts from the defaults, applies --config and then the
// flags that were set on the command line.
func paramsFromContext(c *cli.Context) (cdc.Params, error) {
	p := cdc.DefaultParams()
	if path := c.String("config"); path != "" {
		var err error
		if p, err = cdc.LoadParams(path); err != nil {
			return p, err
		}
	}

	sizes := []struct {
		name string
		dst  *int
	}{
		{"min-chunk", &p.MinChunk},
		{"max-chunk", &p.MaxChunk},
		{"bufsize", &p.BufSize},
	}
	for _, s := range sizes {
		if !c.IsSet(s.name) {
			continue
		}
		v, err := parseSize(s.name, c.String(s.name))
		if err != nil {
			return p, err
		}
		*s.dst = v
	}
	if c.IsSet("window") {
		p.WindowSize = c.Int("window")
	}
	if c.IsSet("divisor") {
		if c.Uint("divisor") > math.MaxUint32 {
			return p, fmt.Errorf("--divisor %d is too large", c.Uint("divisor"))
		}
		p.AvgDivisor = uint32(c.Uint("divisor"))
	}
	if c.IsSet("remainder") {
		if c.Uint("remainder") > math.MaxUint32 {
			return p, fmt.Errorf("--remainder %d is too large", c.Uint("remainder"))
		}
		p.BoundaryRemainder = uint32(c.Uint("remainder"))
	}
	return p, p.Validate()
}

// paramsGiven reports whether the user asked for specific parameters rather
// than relying on the defaults.
func paramsGiven(c *cli.Context) bool {
	for _, name := range []string{"config", "min-chunk", "max-chunk", "window", "divisor", "remainder"} {
		if c.IsSet(name) {
			return true
		}
	}
	return false
}

func digestFromContext(c *cli.Context) (cdc.DigestFunc, error) {
	return cdc.LookupDigest(c.String("digest"))
}

func s3ConfigFromContext(c *cli.Context) s3client.Config {
	return s3client.Config{
		Endpoint:  c.String("s3-endpoint"),
		AccessKey: c.String("s3-access-key"),
		SecretKey: c.String("s3-secret-key"),
		Secure:    c.Bool("s3-secure"),
		Bucket:    c.String("s3-bucket"),
		Prefix:    c.String("s3-prefix"),
	}
}
