package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/shouldipickitup/pkg/utils"
)

const leaseKeyPrefix = "lease:"

// releaseScript deletes the lease only if holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LeaseRepoImpl claims sources in Redis with SET NX and a TTL.
type LeaseRepoImpl struct {
	client *redis.Client
}

// NewLeaseRepo creates a new instance of LeaseRepoImpl.
func NewLeaseRepo(client *redis.Client) *LeaseRepoImpl {
	return &LeaseRepoImpl{client: client}
}

// generateKey creates a consistent Redis key for a source by hashing its URL.
func (r *LeaseRepoImpl) generateKey(sourceURL string) string {
	return fmt.Sprintf("%s%s", leaseKeyPrefix, utils.HashURL(sourceURL))
}

// Acquire claims sourceURL for holder. It reports false if the key already exists.
func (r *LeaseRepoImpl) Acquire(ctx context.Context, sourceURL, holder string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.generateKey(sourceURL), holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

// Release drops the claim. A lease that expired or passed to another holder is left alone.
func (r *LeaseRepoImpl) Release(ctx context.Context, sourceURL, holder string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.generateKey(sourceURL)}, holder).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Ping checks that the Redis server answers.
func (r *LeaseRepoImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Connect creates a client and verifies the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return client, nil
}
