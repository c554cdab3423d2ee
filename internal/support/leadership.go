package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRunLockTTL      = 45 * time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = time.Second
	defaultRenewalFraction = 3
)

var ErrLockHeld = errors.New("support: run lock is held by another process")

var (
	lockCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RunLock keeps two proxyfinder processes sharing one database from verifying the same
// records at once. The lock is renewed in the background until Release is called.
type RunLock struct {
	client    *redis.Client
	key       string
	value     string
	ttl       time.Duration
	stopRenew chan struct{}
	lost      atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// AcquireRunLock takes key without waiting. ErrLockHeld means another process owns it.
func AcquireRunLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*RunLock, error) {
	if client == nil {
		return nil, errors.New("support: run lock needs a redis client")
	}
	if ttl <= 0 {
		ttl = DefaultRunLockTTL
	}

	value := generateLockID()
	ok, err := client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("support: run lock setnx: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	lock := &RunLock{
		client:    client,
		key:       key,
		value:     value,
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
	lock.wg.Add(1)
	go lock.renewLoop()

	log.Debug("run lock: acquired", "key", key)
	return lock, nil
}

// Lost reports whether a renewal found the lock taken over or expired.
func (l *RunLock) Lost() bool {
	return l.lost.Load()
}

func (l *RunLock) Release() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopRenew)
		l.wg.Wait()
		err = l.releaseLock()
		log.Debug("run lock: released", "key", l.key)
	})
	return err
}

func (l *RunLock) renewLoop() {
	defer l.wg.Done()

	interval := l.ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopRenew:
			return
		case <-ticker.C:
			if err := l.renewLock(); err != nil {
				log.Warn("run lock: renewal failed", "key", l.key, "error", err)
				l.lost.Store(true)
				return
			}
		}
	}
}

func (l *RunLock) renewLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, l.client, []string{l.key}, l.value, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}

	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}

	return nil
}

func (l *RunLock) releaseLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateLockID() string {
	host, _ := os.Hostname()
	counter := lockCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), counter)
}
