// Package credentials manages pools of provider API keys.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// MaxNumberedKeys is the highest numbered key read by FromEnv.
const MaxNumberedKeys = 9

// ErrNoCredentials is returned when a pool holds no keys.
var ErrNoCredentials = errors.New("credentials: no API keys configured")

// Pool hands out API keys in round-robin order. It is safe for concurrent use.
type Pool struct {
	keys []string
	next atomic.Uint64
}

// NewPool returns a pool over the given keys. Blank and duplicate keys are
// dropped.
func NewPool(keys ...string) *Pool {
	seen := make(map[string]struct{}, len(keys))
	p := &Pool{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		p.keys = append(p.keys, k)
	}
	return p
}

// FromEnv loads keys from prefix_1 .. prefix_9 and falls back to prefix when
// no numbered key is set. lookup defaults to os.LookupEnv.
func FromEnv(prefix string, lookup func(string) (string, bool)) *Pool {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var keys []string
	for i := 1; i <= MaxNumberedKeys; i++ {
		if v, ok := lookup(fmt.Sprintf("%s_%d", prefix, i)); ok && strings.TrimSpace(v) != "" {
			keys = append(keys, v)
		}
	}
	if len(keys) == 0 {
		if v, ok := lookup(prefix); ok {
			keys = append(keys, v)
		}
	}
	return NewPool(keys...)
}

// Next returns the next key in rotation.
func (p *Pool) Next() (string, error) {
	if p == nil || len(p.keys) == 0 {
		return "", ErrNoCredentials
	}
	i := p.next.Add(1) - 1
	return p.keys[i%uint64(len(p.keys))], nil
}

// Keys returns a copy of the keys in rotation order.
func (p *Pool) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Len returns the number of keys in the pool.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Index returns the position the next call to Next will use. It is meant for
// diagnostics.
func (p *Pool) Index() int {
	if p.Len() == 0 {
		return 0
	}
	return int(p.next.Load() % uint64(len(p.keys)))
}
