package cachestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arran4/httpcore/cachepolicy"
	"github.com/arran4/httpcore/httplog"
)

// Timeouts bounding every Redis round trip, the same per-operation budget
// chproxy's redisCache uses (getTimeout/putTimeout/statsTimeout) so a slow
// Redis never stalls the dispatcher waiting on a cache lookup.
const (
	getTimeout   = 1 * time.Second
	putTimeout   = 2 * time.Second
	statsTimeout = 500 * time.Millisecond
)

// redisPayload is the JSON envelope stored against a Key, mirroring
// chproxy's redisCachePayload shape (length/type/payload) but carrying the
// cachepolicy.Response metadata the policy needs to re-evaluate freshness
// on a later lookup, instead of chproxy's ContentMetadata.
type redisPayload struct {
	StatusCode    int      `json:"status"`
	Header        []byte   `json:"header"`  // gob-encoded http.Header
	RequestMethod string   `json:"req_method"`
	RequestURL    string   `json:"req_url"`
	RequestHeader []byte   `json:"req_header"`
	Sent          int64    `json:"sent"`     // unix nanos
	Received      int64    `json:"received"` // unix nanos
	TLSHandshake  bool     `json:"tls"`
	Codec         string   `json:"codec"`
	Body          string   `json:"body"` // base64 of codec-encoded bytes
}

// RedisStore is a ResponseStore backed by Redis, adapted from chproxy's
// cache/redis_cache.go: same base64-over-JSON wire shape, same
// per-operation context timeouts, generalized from ClickHouse query
// results to Entry.
type RedisStore struct {
	client redis.UniversalClient
	codec  Codec
}

// NewRedisStore wraps client. codec compresses bodies at rest (see
// NewCodec); pass nil for no compression.
func NewRedisStore(client redis.UniversalClient, codec Codec) *RedisStore {
	if codec == nil {
		codec = noneCodec{}
	}
	return &RedisStore{client: client, codec: codec}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var usedMemoryRegexp = regexp.MustCompile(`used_memory:([0-9]+)\r\n`)

// Stats reports the key count and approximate memory footprint of the
// store, the same two-call (DBSize, INFO memory) pattern as chproxy's
// redisCache.Stats.
type Stats struct {
	Items uint64
	Bytes uint64
}

func (r *RedisStore) Stats(ctx context.Context) Stats {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	items, err := r.client.DBSize(ctx).Result()
	if err != nil {
		httplog.Errorf("cachestore: failed to fetch key count from redis: %s", err)
	}

	info, err := r.client.Info(ctx, "memory").Result()
	if err != nil {
		httplog.Errorf("cachestore: failed to fetch memory info from redis: %s", err)
	}
	var nbytes int
	if matches := usedMemoryRegexp.FindStringSubmatch(info); len(matches) > 1 {
		nbytes, err = strconv.Atoi(matches[1])
		if err != nil {
			httplog.Errorf("cachestore: failed to parse used_memory: %s", err)
		}
	}

	return Stats{Items: uint64(items), Bytes: uint64(nbytes)}
}

func (r *RedisStore) Get(ctx context.Context, key cachepolicy.Key) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, getTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var payload redisPayload
	if err := json.Unmarshal([]byte(val), &payload); err != nil {
		httplog.Errorf("cachestore: corrupted payload for key %s: %s", key.String(), err)
		return Entry{}, false, nil
	}

	encoded, err := base64.StdEncoding.DecodeString(payload.Body)
	if err != nil {
		httplog.Errorf("cachestore: failed to decode payload for key %s: %s", key.String(), err)
		return Entry{}, false, nil
	}
	codec, err := NewCodec(payload.Codec)
	if err != nil {
		return Entry{}, false, err
	}
	body, err := codec.Decode(encoded)
	if err != nil {
		return Entry{}, false, err
	}

	header, err := decodeHeader(payload.Header)
	if err != nil {
		return Entry{}, false, err
	}
	reqHeader, err := decodeHeader(payload.RequestHeader)
	if err != nil {
		return Entry{}, false, err
	}
	var reqURL *url.URL
	if payload.RequestURL != "" {
		reqURL, err = url.Parse(payload.RequestURL)
		if err != nil {
			return Entry{}, false, err
		}
	}

	entry := Entry{
		Response: cachepolicy.Response{
			StatusCode:    payload.StatusCode,
			Header:        header,
			RequestMethod: payload.RequestMethod,
			RequestURL:    reqURL,
			RequestHeader: reqHeader,
			Sent:          time.Unix(0, payload.Sent),
			Received:      time.Unix(0, payload.Received),
			TLSHandshake:  payload.TLSHandshake,
		},
		Body: body,
	}
	return entry, true, nil
}

func (r *RedisStore) Put(ctx context.Context, key cachepolicy.Key, entry Entry, ttl time.Duration) error {
	encodedBody, err := r.codec.Encode(entry.Body)
	if err != nil {
		return err
	}
	header, err := encodeHeader(entry.Response.Header)
	if err != nil {
		return err
	}
	reqHeader, err := encodeHeader(entry.Response.RequestHeader)
	if err != nil {
		return err
	}
	reqURL := ""
	if entry.Response.RequestURL != nil {
		reqURL = entry.Response.RequestURL.String()
	}

	payload := redisPayload{
		StatusCode:    entry.Response.StatusCode,
		Header:        header,
		RequestMethod: entry.Response.RequestMethod,
		RequestURL:    reqURL,
		RequestHeader: reqHeader,
		Sent:          entry.Response.Sent.UnixNano(),
		Received:      entry.Response.Received.UnixNano(),
		TLSHandshake:  entry.Response.TLSHandshake,
		Codec:         r.codec.Name(),
		Body:          base64.StdEncoding.EncodeToString(encodedBody),
	}

	marshalled, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()
	return r.client.Set(ctx, key.String(), marshalled, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key cachepolicy.Key) error {
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()
	return r.client.Del(ctx, key.String()).Err()
}

func encodeHeader(h http.Header) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHeader(b []byte) (http.Header, error) {
	if len(b) == 0 {
		return http.Header{}, nil
	}
	var h http.Header
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&h); err != nil {
		return nil, err
	}
	return h, nil
}
