package verifier

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestCommonSuperType(t *testing.T) {
	h := DefaultHierarchy()
	tests := []struct {
		a, b, want string
	}{
		{"java/lang/Integer", "java/lang/Integer", "java/lang/Integer"},
		{"java/lang/Integer", "java/lang/Double", "java/lang/Number"},
		{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/ArithmeticException", "java/lang/RuntimeException"},
		{"java/lang/Exception", "java/lang/RuntimeException", "java/lang/Exception"},
		{"java/lang/String", "java/lang/CharSequence", UniversalObject},
		{"demo/Unknown", "java/lang/String", UniversalObject},
	}
	for _, tt := range tests {
		if got := CommonSuperType(h, tt.a, tt.b); got != tt.want {
			t.Errorf("CommonSuperType(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCommonSuperTypeCycle(t *testing.T) {
	h := MapHierarchy{
		"demo/A": {Name: "demo/A", Super: "demo/B"},
		"demo/B": {Name: "demo/B", Super: "demo/A"},
		"demo/C": {Name: "demo/C", Super: "demo/A"},
	}
	if got := CommonSuperType(h, "demo/C", "demo/B"); got != "demo/B" {
		t.Errorf("got %s, want demo/B", got)
	}
}

func TestIsAssignable(t *testing.T) {
	h := DefaultHierarchy()
	if !IsAssignable(h, "java/lang/Number", "java/lang/Integer") {
		t.Error("Integer should be assignable to Number")
	}
	if IsAssignable(h, "java/lang/Integer", "java/lang/Number") {
		t.Error("Number should not be assignable to Integer")
	}
	if !IsAssignable(h, "java/lang/Comparable", "java/lang/Thread") {
		t.Error("interface targets accept any reference")
	}
}

func TestChainHierarchy(t *testing.T) {
	extra := MapHierarchy{"demo/Foo": {Name: "demo/Foo", Super: "java/lang/Exception"}}
	h := ChainHierarchy{nil, extra, DefaultHierarchy()}
	if got := CommonSuperType(h, "demo/Foo", "java/lang/IllegalStateException"); got != "java/lang/Exception" {
		t.Errorf("got %s, want java/lang/Exception", got)
	}
}

func TestCachedHierarchy(t *testing.T) {
	var calls atomic.Int32
	base := DefaultHierarchy()
	c := NewCachedHierarchy(HierarchyFunc(func(name string) (ClassInfo, bool) {
		calls.Add(1)
		return base.Lookup(name)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			CommonSuperType(c, "java/lang/Integer", "java/lang/Long")
			c.Lookup("demo/Missing")
		}()
	}
	wg.Wait()

	before := calls.Load()
	CommonSuperType(c, "java/lang/Integer", "java/lang/Long")
	if _, ok := c.Lookup("demo/Missing"); ok {
		t.Error("missing class resolved")
	}
	if after := calls.Load(); after != before {
		t.Errorf("cached lookups reached the resolver: %d -> %d", before, after)
	}
}
