package interceptors

import (
	"errors"
	"strconv"
	"time"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/cache"
	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/proto"
)

// errNotProto only ever reaches the cache layer, which then skips storing.
var errNotProto = errors.New("response is not a proto.Message")

var deterministic = proto.MarshalOptions{Deterministic: true}

// Cache returns a layer that caches protobuf responses of unary calls in
// store. The key is the full method plus a hash of the deterministically
// encoded request; newResp allocates the message a hit is decoded into.
// Calls whose request is not a proto.Message bypass the cache.
func Cache(store cache.Cache, ttl time.Duration, newResp func() proto.Message) onion.Middleware[*UnaryCall] {
	return cache.Middleware(store, ttl, cache.Codec[*UnaryCall]{
		Key:    requestKey,
		Encode: encodeResp,
		Decode: func(c *UnaryCall, val []byte) error {
			m := newResp()
			if err := proto.Unmarshal(val, m); err != nil {
				return err
			}
			c.Resp = m
			return nil
		},
	})
}

func requestKey(c *UnaryCall) (string, bool) {
	m, ok := c.Req.(proto.Message)
	if !ok {
		return "", false
	}
	b, err := deterministic.Marshal(m)
	if err != nil {
		return "", false
	}
	return "rpc:" + c.FullMethod() + ":" + strconv.FormatUint(xxhash.Sum64(b), 16), true
}

func encodeResp(c *UnaryCall) ([]byte, error) {
	m, ok := c.Resp.(proto.Message)
	if !ok {
		return nil, errNotProto
	}
	return proto.Marshal(m)
}
