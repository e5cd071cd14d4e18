package cache

import (
	"context"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

// DefaultConnectTimeout is the maximum time to wait for the initial ping.
const DefaultConnectTimeout = 5 * time.Second

// ValkeyConfig holds the configuration for connecting to Valkey or Redis.
type ValkeyConfig struct {
	Address        string
	Password       string
	DB             int
	ConnectTimeout time.Duration
}

// ValkeyCache delegates expiry to the server's native TTL handling.
type ValkeyCache struct {
	client valkeylib.Client
}

// NewValkeyCache connects and pings the server.
// The caller is responsible for calling Close() when done.
func NewValkeyCache(cfg ValkeyConfig) (*ValkeyCache, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}
	return &ValkeyCache{client: client}, nil
}

func (v *ValkeyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).AsBytes()
	if valkeylib.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (v *ValkeyCache) Put(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return ErrInvalidTTL
	}
	cmd := v.client.B().Set().
		Key(key).
		Value(valkeylib.BinaryString(value)).
		ExSeconds(int64(ttlSeconds)).
		Build()
	return v.client.Do(ctx, cmd).Error()
}

func (v *ValkeyCache) Close() error {
	v.client.Close()
	return nil
}
