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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	// lockExpiry must be long enough for a renewal to land before it lapses.
	lockExpiry = 30 * time.Second

	lockRetryInterval = 100 * time.Millisecond
)

var renewalInterval = 10 * time.Second

var ErrLockTimeout = errors.New("timed out waiting for index lock")

// KEYS[1]: lock key, ARGV[1]: owner id
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

// KEYS[1]: lock key, ARGV[1]: owner id, ARGV[2]: expiry in milliseconds
const renewLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("pexpire", KEYS[1], ARGV[2])
else
    return 0
end
`

// LockClient is the subset of redis.UniversalClient the lock needs.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLock keeps two writers from building the same Redis index at once.
// The lock expires on its own if the holder dies; while held it is renewed
// in the background.
type RedisLock struct {
	key     string
	ownerID string
	rdb     LockClient
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRedisLock(rdb LockClient, prefix, name string) *RedisLock {
	return &RedisLock{
		key:     fmt.Sprintf("lock:write:%s:%s", prefix, name),
		ownerID: uuid.NewString(),
		rdb:     rdb,
	}
}

func (l *RedisLock) Key() string {
	return l.key
}

// Lock blocks until the lock is acquired, ctx is done or timeout elapses.
func (l *RedisLock) Lock(ctx context.Context, timeout time.Duration) error {
	logger.Tracef("Attempting to acquire index lock %s", l.key)
	deadline := time.Now().Add(timeout)
	for {
		acquired, err := l.rdb.SetNX(ctx, l.key, l.ownerID, lockExpiry).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
		}
		if acquired {
			var renewCtx context.Context
			renewCtx, l.cancel = context.WithCancel(context.Background())
			l.done = make(chan struct{})
			go l.renew(renewCtx)
			logger.Tracef("Acquired index lock %s", l.key)
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, l.key)
		}

		select {
		case <-time.After(lockRetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *RedisLock) renew(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(renewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := l.rdb.Eval(ctx, renewLockScript, []string{l.key}, l.ownerID, lockExpiry.Milliseconds()).Int64()
			if err != nil {
				logger.Warnf("Failed to renew lock %s: %v. The lock may have expired.", l.key, err)
				return
			}
			if renewed == 0 {
				logger.Warnf("Lost lock %s: it expired or is now held by another writer", l.key)
				return
			}
			logger.Tracef("Renewed index lock %s", l.key)
		}
	}
}

// Unlock stops renewal and deletes the key if this lock still owns it.
func (l *RedisLock) Unlock() error {
	if l.cancel != nil {
		l.cancel()
		<-l.done
		l.cancel = nil
	}
	if err := l.rdb.Eval(context.Background(), releaseLockScript, []string{l.key}, l.ownerID).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	logger.Tracef("Released index lock %s", l.key)
	return nil
}
