// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
package index

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/zhengshuai-xiao/cdcidx/pkg/cdc"
)

// RedisClient is the subset of redis.UniversalClient the index needs.
type RedisClient interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

const (
	fieldTarget = "target_block_size"
	fieldCount  = "block_count"
)

func redisKeys(prefix, name string) (entries, header string) {
	base := prefix + ":" + name
	return base + ":entries", base + ":header"
}

// RedisSink stores an index in Redis: the encoded entries in a list and the
// header in a hash. The header hash only exists once the index is
// finalized.
type RedisSink struct {
	ctx        context.Context
	rdb        RedisClient
	entriesKey string
	headerKey  string

	count     uint64
	next      uint64
	finalized bool
}

// NewRedisSink drops any index previously stored under prefix:name.
func NewRedisSink(ctx context.Context, rdb RedisClient, prefix, name string) (*RedisSink, error) {
	entriesKey, headerKey := redisKeys(prefix, name)
	if err := rdb.Del(ctx, headerKey, entriesKey).Err(); err != nil {
		return nil, fmt.Errorf("failed to reset index keys %s: %w", entriesKey, err)
	}
	return &RedisSink{
		ctx:        ctx,
		rdb:        rdb,
		entriesKey: entriesKey,
		headerKey:  headerKey,
	}, nil
}

func (s *RedisSink) Append(e cdc.BlockEntry) error {
	if s.finalized {
		return ErrFinalized
	}
	if e.Offset != s.next {
		return fmt.Errorf("%w: entry at offset %d, expected %d", ErrOutOfOrder, e.Offset, s.next)
	}
	rec := EncodeEntry(e)
	n, err := s.rdb.RPush(s.ctx, s.entriesKey, rec[:]).Result()
	if err != nil {
		return fmt.Errorf("failed to push entry to %s: %w", s.entriesKey, err)
	}
	if uint64(n) != s.count+1 {
		return fmt.Errorf("%w: list %s has %d entries after push, expected %d", ErrOutOfOrder, s.entriesKey, n, s.count+1)
	}
	s.count++
	s.next = e.End()
	return nil
}

func (s *RedisSink) Finalize(h cdc.Header) error {
	if s.finalized {
		return ErrFinalized
	}
	if uint64(h.BlockCount) != s.count {
		return fmt.Errorf("header block count %d does not match %d appended entries", h.BlockCount, s.count)
	}
	err := s.rdb.HSet(s.ctx, s.headerKey,
		fieldTarget, strconv.FormatUint(uint64(h.TargetBlockSize), 10),
		fieldCount, strconv.FormatUint(uint64(h.BlockCount), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write header %s: %w", s.headerKey, err)
	}
	s.finalized = true
	logger.Debugf("finalized redis index %s: %d blocks", s.headerKey, h.BlockCount)
	return nil
}

// ReadRedis loads an index written by RedisSink.
func ReadRedis(ctx context.Context, rdb RedisClient, prefix, name string) (*Index, error) {
	entriesKey, headerKey := redisKeys(prefix, name)
	fields, err := rdb.HGetAll(ctx, headerKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read header %s: %w", headerKey, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFinalized
	}
	target, err := strconv.ParseUint(fields[fieldTarget], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: header %s: %w", ErrCorruptIndex, headerKey, err)
	}
	count, err := strconv.ParseUint(fields[fieldCount], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: header %s: %w", ErrCorruptIndex, headerKey, err)
	}

	recs, err := rdb.LRange(ctx, entriesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read entries %s: %w", entriesKey, err)
	}
	if uint64(len(recs)) != count {
		return nil, fmt.Errorf("%w: header has %d blocks, list %s has %d", ErrCorruptIndex, count, entriesKey, len(recs))
	}

	idx := &Index{
		Header:  cdc.Header{TargetBlockSize: uint32(target), BlockCount: uint32(count)},
		Entries: make([]cdc.BlockEntry, 0, len(recs)),
	}
	for i, rec := range recs {
		e, err := DecodeEntry([]byte(rec))
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Offset != idx.Size() {
			return nil, fmt.Errorf("%w: entry %d starts at %d, previous entry ends at %d", ErrCorruptIndex, i, e.Offset, idx.Size())
		}
		if e.Length == 0 {
			return nil, fmt.Errorf("%w: entry %d is empty", ErrCorruptIndex, i)
		}
		idx.Entries = append(idx.Entries, e)
	}
	return idx, nil
}

// NewRedisClient connects to a single node, a cluster ("host1:port,host2:port")
// or a sentinel group ("master,sentinel1:port,...").
func NewRedisClient(addr string, retries int) (redis.UniversalClient, error) {
	u, err := url.Parse("redis://" + addr)
	if err != nil {
		return nil, fmt.Errorf("invalid redis address format: %w", err)
	}
	opt, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("could not parse redis URL: %w", err)
	}
	if opt.Password == "" {
		opt.Password = os.Getenv("REDIS_PASSWORD")
	}
	if opt.Password == "" {
		opt.Password = os.Getenv("META_PASSWORD")
	}

	universalOptions := &redis.UniversalOptions{
		Addrs:      strings.Split(u.Host, ","),
		DB:         opt.DB,
		Password:   opt.Password,
		MaxRetries: retries,
	}
	if universalOptions.MaxRetries == 0 {
		universalOptions.MaxRetries = -1
	}

	hosts := strings.Split(u.Host, ",")
	if len(hosts) > 1 && !strings.Contains(hosts[0], ":") {
		universalOptions.MasterName = hosts[0]
		universalOptions.Addrs = hosts[1:]
		logger.Infof("Connecting to Redis in Sentinel mode. Master: %s, Sentinels: %v", universalOptions.MasterName, universalOptions.Addrs)
	} else if len(hosts) > 1 {
		logger.Infof("Connecting to Redis in Cluster mode. Nodes: %v", universalOptions.Addrs)
	} else {
		logger.Infof("Connecting to Redis in Single-node mode. Address: %s", universalOptions.Addrs[0])
	}

	rdb := redis.NewUniversalClient(universalOptions)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}
