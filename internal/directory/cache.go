package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/service-request-engine/internal/domain"
)

// Cached directories sit in front of the Postgres-backed ones with a short
// TTL. Cache failures degrade to a direct lookup, never to a read error.

const (
	userCachePrefix    = "dir:user:"
	companyCachePrefix = "dir:company:"
)

type cachedUserDirectory struct {
	inner  UserDirectory
	client *redis.Client
	ttl    time.Duration
}

// NewCachedUserDirectory wraps a user directory with a Redis cache.
func NewCachedUserDirectory(inner UserDirectory, client *redis.Client, ttl time.Duration) UserDirectory {
	if client == nil || ttl <= 0 {
		return inner
	}
	return &cachedUserDirectory{inner: inner, client: client, ttl: ttl}
}

func (d *cachedUserDirectory) Resolve(ctx context.Context, userID string) (*domain.User, error) {
	key := userCachePrefix + userID
	if raw, err := d.client.Get(ctx, key).Bytes(); err == nil {
		var user domain.User
		if err := json.Unmarshal(raw, &user); err == nil {
			return &user, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// fall through to the source on cache errors
	}

	user, err := d.inner.Resolve(ctx, userID)
	if err != nil || user == nil {
		return user, err
	}
	if raw, err := json.Marshal(user); err == nil {
		_ = d.client.Set(ctx, key, raw, d.ttl).Err()
	}
	return user, nil
}

func (d *cachedUserDirectory) ResolveByEmail(ctx context.Context, email string) (*domain.User, error) {
	// email lookups are rare (dev token mint only); no caching
	return d.inner.ResolveByEmail(ctx, email)
}

type cachedCompanyDirectory struct {
	inner  CompanyDirectory
	client *redis.Client
	ttl    time.Duration
}

// NewCachedCompanyDirectory wraps a company directory with a Redis cache.
func NewCachedCompanyDirectory(inner CompanyDirectory, client *redis.Client, ttl time.Duration) CompanyDirectory {
	if client == nil || ttl <= 0 {
		return inner
	}
	return &cachedCompanyDirectory{inner: inner, client: client, ttl: ttl}
}

func (d *cachedCompanyDirectory) Resolve(ctx context.Context, companyID string) (*domain.Company, error) {
	key := companyCachePrefix + companyID
	if raw, err := d.client.Get(ctx, key).Bytes(); err == nil {
		var company domain.Company
		if err := json.Unmarshal(raw, &company); err == nil {
			return &company, nil
		}
	}

	company, err := d.inner.Resolve(ctx, companyID)
	if err != nil || company == nil {
		return company, err
	}
	if raw, err := json.Marshal(company); err == nil {
		_ = d.client.Set(ctx, key, raw, d.ttl).Err()
	}
	return company, nil
}
