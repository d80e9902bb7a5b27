// Caliper is a performance-annotation runtime core: a library, not a
// service, meant to be embedded in an instrumented program.
//
// Typical use:
//
//	f, err := caliper.Instance()
//	env := f.NewEnvironment()
//	f.Begin(env, "handler", []byte("GET /users"))
//	f.Set(env, "user_id", []byte("42"), false)
//	buf, _ := f.GetContext(env)
//	f.End(env, "handler")
//
// See SPEC_FULL.md for the full component breakdown (attribute registry,
// node trie, context store, event bus, memory pool, signal-safe lock).
package caliper
