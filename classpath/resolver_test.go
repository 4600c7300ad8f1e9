package classpath

import (
	"errors"
	"sync"
	"testing"

	"github.com/chazu/bcverify/pkg/bytecode"
)

const refsYAML = `
classes:
  - name: Node
    fields:
      - {name: next, type: Node}
    methods:
      - name: walk
        vregs: 1
        code: |
          s: ldobj.obj v1, @next
          sta.obj v0
          lda.str "done"
          newobj v0, @Ghost
          call.virt @walk, v0
          ldstatic @Node.count
          return.void
        try:
          - start: s
            end: s
            catches:
              - {type: Ghost, handler: s}
`

func loadRefs(t *testing.T) (*Resolver, *Method) {
	t.Helper()
	reg := NewRegistry()
	if _, err := reg.LoadYAML([]byte(refsYAML)); err != nil {
		t.Fatal(err)
	}
	m, ok := reg.LookupMethod("Node.walk")
	if !ok {
		t.Fatal("Node.walk not loaded")
	}
	return NewResolver(reg), m
}

func TestPreresolve(t *testing.T) {
	r, m := loadRefs(t)
	g := &RuntimeGuard{}
	cache := r.Preresolve(g, m)

	if got := cache.Len(); got != 5 {
		t.Errorf("Len() = %d, want 5", got)
	}
	if res, ok := cache.At(0); !ok || !res.OK() || res.Field.FullName() != "Node.next" {
		t.Errorf("At(0) = %+v", res)
	}
	if _, ok := cache.At(4); ok {
		t.Error("sta.obj has a cache entry")
	}
	if res, _ := cache.At(6); res.String != "done" {
		t.Errorf("At(6).String = %q", res.String)
	}
	if res, _ := cache.At(9); !errors.Is(res.Err, ErrUnknownClass) {
		t.Errorf("At(9).Err = %v, want ErrUnknownClass", res.Err)
	}
	if res, _ := cache.At(13); !res.OK() || res.Method != m {
		t.Errorf("At(13) = %+v, want Node.walk", res)
	}
	if res, _ := cache.At(18); !errors.Is(res.Err, ErrUnknownField) {
		t.Errorf("At(18).Err = %v, want ErrUnknownField", res.Err)
	}
	if res, ok := cache.Catch(0); !ok || !errors.Is(res.Err, ErrUnknownClass) {
		t.Errorf("Catch(0) = %+v, want a cached failure", res)
	}
	if g.Status() != StatusVerifying {
		t.Errorf("guard left in %s", g.Status())
	}
}

func TestResolveErrors(t *testing.T) {
	r, m := loadRefs(t)
	g := &RuntimeGuard{}
	if res := r.Resolve(g, m, 500, bytecode.IDClass); !errors.Is(res.Err, ErrBadPoolID) {
		t.Errorf("out of range id: %v", res.Err)
	}
	// Entry 0 is the field reference.
	if res := r.Resolve(g, m, 0, bytecode.IDMethod); !errors.Is(res.Err, ErrKindMismatch) {
		t.Errorf("kind mismatch: %v", res.Err)
	}
}

func TestCacheBuiltOnce(t *testing.T) {
	r, m := loadRefs(t)
	g := &RuntimeGuard{}

	var wg sync.WaitGroup
	caches := make([]*ResolvedCache, 8)
	for i := range caches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			caches[i] = r.Cache(&RuntimeGuard{}, m)
		}()
	}
	wg.Wait()
	for _, c := range caches[1:] {
		if c != caches[0] {
			t.Fatal("concurrent callers got different caches")
		}
	}

	if c := r.Cache(g, m); c != caches[0] {
		t.Error("cache rebuilt")
	}
	if g.Calls() != 0 {
		t.Errorf("cached lookup made %d runtime calls", g.Calls())
	}
}

func TestNilCache(t *testing.T) {
	var c *ResolvedCache
	if _, ok := c.At(0); ok {
		t.Error("nil cache returned an entry")
	}
	if _, ok := c.Catch(0); ok || c.Len() != 0 {
		t.Error("nil cache is not empty")
	}
}
