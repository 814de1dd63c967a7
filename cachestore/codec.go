// Package cachestore is the optional persistence layer behind
// cachepolicy's pure decision function (SPEC_FULL domain stack): it stores
// and retrieves the response bodies a Decision says are cacheable, so a
// long-running client can reuse them across process restarts. Adapted from
// chproxy's cache package (cache/redis_cache.go,
// cache/transaction_registry_redis.go), generalized from ClickHouse query
// results to arbitrary HTTP response bodies.
package cachestore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4"
)

// Codec compresses/decompresses a cached response body at rest. Bodies are
// compressed independently of any Content-Encoding the origin applied —
// cachestore's codec is about storage efficiency, not wire transfer,
// mirroring chproxy's decompressor/chdecompressor packages (there the
// direction is decompressing upstream responses; here it is compressing
// bodies before persistence).
type Codec interface {
	Name() string
	Encode(body []byte) ([]byte, error)
	Decode(encoded []byte) ([]byte, error)
}

// NewCodec resolves a Codec by name, as configured by
// httpconfig.CacheConfig.Codec.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return noneCodec{}, nil
	case "gzip":
		return gzipCodec{}, nil
	case "lz4":
		return lz4Codec{}, nil
	default:
		return nil, fmt.Errorf("cachestore: unknown codec %q", name)
	}
}

type noneCodec struct{}

func (noneCodec) Name() string                        { return "none" }
func (noneCodec) Encode(body []byte) ([]byte, error)  { return body, nil }
func (noneCodec) Decode(body []byte) ([]byte, error)  { return body, nil }

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) Encode(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(encoded []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Encode(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decode(encoded []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(encoded))
	return io.ReadAll(r)
}
