package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/urfave/cli/v2"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
	"github.com/zhengshuai-xiao/cdcidx/pkg/index"
	"github.com/zhengshuai-xiao/cdcidx/pkg/s3client"
)

// indexStore is the part of redis.UniversalClient an index build uses.
type indexStore interface {
	index.RedisClient
	index.LockClient
	Close() error
}

// indexer holds what stays the same across the sources of one command run.
type indexer struct {
	params cdc.Params
	digest cdc.DigestFunc

	rdb         indexStore
	redisPrefix string
	lockTimeout time.Duration

	s3core *miniogo.Core
	s3cfg  s3client.Config
}

// indexTarget names where the index of one source goes. Out is a local
// file path, RedisName a redis index name and Object an S3 key; empty
// values disable that destination.
type indexTarget struct {
	Out       string
	RedisName string
	Object    string
}

func newIndexer(c *cli.Context) (*indexer, error) {
	p, err := paramsFromContext(c)
	if err != nil {
		return nil, err
	}
	digest, err := digestFromContext(c)
	if err != nil {
		return nil, err
	}
	ix := &indexer{
		params:      p,
		digest:      digest,
		redisPrefix: c.String("redis-prefix"),
		lockTimeout: c.Duration("lock-timeout"),
		s3cfg:       s3ConfigFromContext(c),
	}

	if addr := c.String("redis"); addr != "" {
		if ix.rdb, err = index.NewRedisClient(addr, c.Int("redis-retries")); err != nil {
			return nil, err
		}
	}
	if ix.s3cfg.Enabled() {
		if ix.s3core, err = s3client.NewCore(ix.s3cfg); err != nil {
			ix.Close()
			return nil, err
		}
	}
	logger.Debugf("chunking params: %+v", p)
	return ix, nil
}

func (ix *indexer) Close() {
	if ix.rdb != nil {
		ix.rdb.Close()
	}
}

// Index scans src into every destination of t. The redis lock is taken
// before the index file is truncated, so a lock timeout leaves an existing
// index untouched. A failed or cancelled scan leaves the index file behind
// with its unfinalized header.
func (ix *indexer) Index(ctx context.Context, src io.Reader, t indexTarget) (cdc.Header, error) {
	var sinks []cdc.Sink

	if ix.rdb != nil && t.RedisName != "" {
		lock := index.NewRedisLock(ix.rdb, ix.redisPrefix, t.RedisName)
		if err := lock.Lock(ctx, ix.lockTimeout); err != nil {
			return cdc.Header{}, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warnf("%s", err)
			}
		}()
		rs, err := index.NewRedisSink(ctx, ix.rdb, ix.redisPrefix, t.RedisName)
		if err != nil {
			return cdc.Header{}, err
		}
		sinks = append(sinks, rs)
	}

	var w *index.Writer
	if t.Out != "" {
		var err error
		if w, err = index.Create(t.Out); err != nil {
			return cdc.Header{}, err
		}
		defer w.Close()
		sinks = append(sinks, w)
	}

	if len(sinks) == 0 {
		return cdc.Header{}, fmt.Errorf("no index destination")
	}

	h, err := cdc.Scan(ctx, src, cdc.MultiSink(sinks...), ix.params, ix.digest)
	if err != nil {
		if w != nil {
			logger.Warnf("index %s left unfinalized", t.Out)
		}
		return h, err
	}
	if w != nil {
		if err := w.Close(); err != nil {
			return h, fmt.Errorf("failed to close index %s: %w", t.Out, err)
		}
	}

	if ix.s3core != nil && w != nil && t.Object != "" {
		if _, err := s3client.UploadIndex(ctx, ix.s3core, ix.s3cfg.Bucket, t.Object, t.Out, h); err != nil {
			return h, err
		}
	}
	return h, nil
}
