package reactive

// Subscriber aggregates subscriptions for bulk cleanup.
type Subscriber struct {
	unsubs []func()
}

func (s *Subscriber) Add(unsubscribe func()) { s.unsubs = append(s.unsubs, unsubscribe) }

// Destroy unsubscribes from every source. Idempotent.
func (s *Subscriber) Destroy() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// Watch subscribes through s so the subscription dies with it.
func Watch[T any](s *Subscriber, o *Observable[T], fn func(T), skipInitial bool) {
	s.Add(o.Subscribe(fn, skipInitial))
}

// Source is either a constant or an Observable, consumed uniformly
// by the Autorun functions.
type Source[T any] struct {
	obs   *Observable[T]
	value T
}

func Const[T any](v T) Source[T] { return Source[T]{value: v} }

func Obs[T any](o *Observable[T]) Source[T] { return Source[T]{obs: o} }

func (s Source[T]) get() T {
	if s.obs != nil {
		return s.obs.Get()
	}
	return s.value
}

func (s Source[T]) watch(sub *Subscriber, fn func()) {
	if s.obs != nil {
		sub.Add(s.obs.Subscribe(func(T) { fn() }, true))
	}
}

// guard panics when a reaction triggers itself while running:
// reactions must never run concurrently with themselves.
type guard struct{ running bool }

func (g *guard) enter() {
	if g.running {
		panic("reactive: reaction re-entered during its own execution")
	}
	g.running = true
}

func (g *guard) exit() { g.running = false }

// Autorun2 recomputes fn with the latest values of both sources
// whenever any observable source changes, plus once immediately.
func Autorun2[A, B any](s *Subscriber, a Source[A], b Source[B], fn func(A, B)) {
	g := &guard{}
	run := func() {
		g.enter()
		defer g.exit()
		fn(a.get(), b.get())
	}
	a.watch(s, run)
	b.watch(s, run)
	run()
}

// Autorun3 is Autorun2 over three sources.
func Autorun3[A, B, C any](s *Subscriber, a Source[A], b Source[B], c Source[C], fn func(A, B, C)) {
	g := &guard{}
	run := func() {
		g.enter()
		defer g.exit()
		fn(a.get(), b.get(), c.get())
	}
	a.watch(s, run)
	b.watch(s, run)
	c.watch(s, run)
	run()
}

// Autorun4 is Autorun2 over four sources.
func Autorun4[A, B, C, D any](s *Subscriber, a Source[A], b Source[B], c Source[C], d Source[D], fn func(A, B, C, D)) {
	g := &guard{}
	run := func() {
		g.enter()
		defer g.exit()
		fn(a.get(), b.get(), c.get(), d.get())
	}
	a.watch(s, run)
	b.watch(s, run)
	c.watch(s, run)
	d.watch(s, run)
	run()
}
