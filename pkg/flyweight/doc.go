// Package flyweight interns expensive instances by their construction
// arguments without keeping them alive.
//
// # Overview
//
// A Cache maps the canonical key of an argument value (see package argkey)
// to a weak slot. While any caller still holds the instance, every request
// with equivalent arguments receives that same pointer. Once the last
// holder drops it, the garbage collector may reclaim the instance and the
// next request constructs a fresh one. The cache itself never owns an
// instance: hooks, the construction journal and the debug endpoints only
// see keys and timings.
//
// # Key Features
//
//   - Identity reuse keyed by argument equivalence, not by Go value equality
//   - Weak slots (weak.Pointer) with eager removal through runtime.AddCleanup
//     and lazy removal on lookup or Purge
//   - One factory call per key at a time; concurrent callers join it
//   - Cancellable waits that never cancel the construction itself
//   - Partitions per type id through a Registry
//   - Hooks, statistics, slog-based logging, Prometheus and OpenTelemetry export
//   - YAML or JSON configuration through koanf
//
// # Basic Usage
//
//	type Font struct {
//	    Family string
//	    Size   int
//	}
//
//	fonts, err := flyweight.New[Font]("font", flyweight.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	load := func(args any) (*Font, error) {
//	    m := args.(map[string]any)
//	    return loadFont(m["family"].(string), m["size"])
//	}
//
//	a, _ := fonts.GetOrCreate(map[string]any{"family": "Inter", "size": 12}, load)
//	b, _ := fonts.GetOrCreate(map[string]any{"size": 12.0, "family": "Inter"}, load)
//	// a == b while either is reachable
//
// # Registry
//
// A Registry holds one partition per type id. A type id is bound to the
// instance type it was first used with:
//
//	reg, _ := flyweight.NewRegistry(nil)
//	font, err := flyweight.GetOrCreate(reg, "font", args, load)
//
// # Constructors
//
// Bind turns a cache and factory into a constructor that accepts either a
// mapping or name/value pairs. Both forms share one key; the factory is
// handed the constructor's arguments as a []any:
//
//	newFont := flyweight.Bind(fonts, load)
//	f, err := newFont("family", "Inter", "size", 12)
//
// # Errors
//
// Arguments outside the supported domain fail with
// *UnsupportedArgumentError before the factory is called. Factory errors
// are returned unchanged to every caller joined to the failed construction
// and are never cached. A panicking factory yields *PanicError.
//
// # Reclamation
//
// Reclamation follows the garbage collector, so timing is not deterministic.
// Instances should be regular heap objects: zero-sized types share one
// address and are never reclaimed, and small pointer-free values may be
// batched by the allocator and reclaimed late.
package flyweight
