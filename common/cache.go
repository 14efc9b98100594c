// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package common

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
)

var (
	ErrCacheMiss    = errors.New("key not in cache")
	ErrCorruptCache = errors.New("corrupt cache entry")
)

var rdb *redis.Client
var cache *lru.Cache

// SetupCache creates the in-process LRU and, when cache.redis is set, the
// shared redis tier
func SetupCache() error {
	var err error
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return err
		}

		rdb = redis.NewClient(opt)
	} else {
		rdb = nil
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = 128
	}
	cache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return err
	}
	return nil
}

// CacheKey hashes parts into a fixed length key
func CacheKey(parts ...string) string {
	sum := blake3.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "pvattr:" + hex.EncodeToString(sum[:])
}

func CacheSet(ctx context.Context, key string, bytes []byte) error {
	if cache == nil {
		return nil
	}

	b2, err := Compress(bytes)
	if err != nil {
		return err
	}
	cache.Add(key, b2)

	if rdb != nil {
		expires := time.Duration(viper.GetInt("cache.ttl")) * time.Second
		return rdb.Set(ctx, key, b2, expires).Err()
	}
	return nil
}

func CacheGet(ctx context.Context, key string) ([]byte, error) {
	if cache == nil {
		return nil, ErrCacheMiss
	}

	if v2, ok := cache.Get(key); ok {
		return decompressEntry(key, v2.([]byte))
	}

	if rdb != nil {
		expires := time.Duration(viper.GetInt("cache.ttl")) * time.Second
		val, err := rdb.GetEx(ctx, key, expires).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, err
		}
		cache.Add(key, val)
		return decompressEntry(key, val)
	}

	return nil, ErrCacheMiss
}

// decompressEntry drops an entry that no longer decodes so the next request
// recomputes it
func decompressEntry(key string, val []byte) ([]byte, error) {
	out, err := Decompress(val)
	if err != nil {
		cache.Remove(key)
		return nil, fmt.Errorf("cache key %s: %w", key, err)
	}
	return out, nil
}

// CachePurge empties the local tier
func CachePurge() {
	if cache != nil {
		cache.Purge()
	}
}
