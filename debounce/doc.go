// Package debounce suppresses repeated calls and coalesces bursts.
//
// Two policies share a key built by Key:
//
//   - Repeat suppression: Allow refuses a call when the same key dispatched
//     less than a window ago. State lives in a Store; MemoryStore keeps it in
//     a bounded LRU, RedisStore shares it across processes.
//   - Override: Schedule delays a call and supersedes any call already
//     pending or in flight under the same key, so only the last call of a
//     burst reaches the network.
//
// # Usage
//
//	reg := debounce.NewRegistry(
//		debounce.WithStore(debounce.NewRedisStore(rdb, "myapp:")),
//	)
//	ok, err := reg.Allow(ctx, debounce.Key(url, params, method), 500*time.Millisecond)
package debounce
