package verifier

import "sync"

// ClassInfo is what the common-superclass search needs to know about a class.
type ClassInfo struct {
	Name       string
	Super      string
	Interface  bool
	Interfaces []string
}

// ClassHierarchy resolves class names to their ancestry. Implementations
// must be safe for concurrent use when shared between sessions.
type ClassHierarchy interface {
	Lookup(name string) (ClassInfo, bool)
}

// HierarchyFunc adapts a lookup function, typically a lazy resolver backed
// by the compiler's class table.
type HierarchyFunc func(name string) (ClassInfo, bool)

func (f HierarchyFunc) Lookup(name string) (ClassInfo, bool) { return f(name) }

// MapHierarchy is a fixed table of classes.
type MapHierarchy map[string]ClassInfo

// NewMapHierarchy returns the default java/lang table extended with classes.
func NewMapHierarchy(classes ...ClassInfo) MapHierarchy {
	h := DefaultHierarchy()
	for _, c := range classes {
		h.Add(c)
	}
	return h
}

// Add records c, defaulting its superclass to java/lang/Object.
func (h MapHierarchy) Add(c ClassInfo) {
	if c.Super == "" && c.Name != UniversalObject {
		c.Super = UniversalObject
	}
	h[c.Name] = c
}

func (h MapHierarchy) Lookup(name string) (ClassInfo, bool) {
	c, ok := h[name]
	return c, ok
}

// ChainHierarchy consults each hierarchy in order.
type ChainHierarchy []ClassHierarchy

func (c ChainHierarchy) Lookup(name string) (ClassInfo, bool) {
	for _, h := range c {
		if h == nil {
			continue
		}
		if info, ok := h.Lookup(name); ok {
			return info, true
		}
	}
	return ClassInfo{}, false
}

type cachedClass struct {
	info ClassInfo
	ok   bool
}

// CachedHierarchy memoizes lookups of an expensive resolver, misses included.
type CachedHierarchy struct {
	mu    sync.RWMutex
	next  ClassHierarchy
	cache map[string]cachedClass
}

func NewCachedHierarchy(next ClassHierarchy) *CachedHierarchy {
	return &CachedHierarchy{
		next:  next,
		cache: make(map[string]cachedClass, 64),
	}
}

func (c *CachedHierarchy) Lookup(name string) (ClassInfo, bool) {
	c.mu.RLock()
	if hit, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return hit.info, hit.ok
	}
	c.mu.RUnlock()

	info, ok := c.next.Lookup(name)

	c.mu.Lock()
	c.cache[name] = cachedClass{info: info, ok: ok}
	c.mu.Unlock()
	return info, ok
}

// DefaultHierarchy knows the java/lang classes the instruction set itself
// refers to (exceptions, boxing, strings).
func DefaultHierarchy() MapHierarchy {
	h := MapHierarchy{
		UniversalObject: {Name: UniversalObject},
	}
	for _, c := range []ClassInfo{
		{Name: "java/io/Serializable", Interface: true},
		{Name: "java/lang/Cloneable", Interface: true},
		{Name: "java/lang/Comparable", Interface: true},
		{Name: "java/lang/CharSequence", Interface: true},
		{Name: "java/lang/Runnable", Interface: true},
		{Name: "java/lang/Iterable", Interface: true},
		{Name: "java/lang/String", Interfaces: []string{"java/io/Serializable", "java/lang/Comparable", "java/lang/CharSequence"}},
		{Name: "java/lang/Class", Interfaces: []string{"java/io/Serializable"}},
		{Name: "java/lang/Number", Interfaces: []string{"java/io/Serializable"}},
		{Name: "java/lang/Integer", Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
		{Name: "java/lang/Long", Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
		{Name: "java/lang/Short", Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
		{Name: "java/lang/Byte", Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
		{Name: "java/lang/Float", Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
		{Name: "java/lang/Double", Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
		{Name: "java/lang/Boolean", Interfaces: []string{"java/io/Serializable", "java/lang/Comparable"}},
		{Name: "java/lang/Character", Interfaces: []string{"java/io/Serializable", "java/lang/Comparable"}},
		{Name: "java/lang/StringBuilder", Interfaces: []string{"java/io/Serializable", "java/lang/CharSequence"}},
		{Name: "java/lang/Throwable", Interfaces: []string{"java/io/Serializable"}},
		{Name: "java/lang/Exception", Super: "java/lang/Throwable"},
		{Name: "java/lang/Error", Super: "java/lang/Throwable"},
		{Name: "java/lang/RuntimeException", Super: "java/lang/Exception"},
		{Name: "java/lang/IllegalArgumentException", Super: "java/lang/RuntimeException"},
		{Name: "java/lang/IllegalStateException", Super: "java/lang/RuntimeException"},
		{Name: "java/lang/NullPointerException", Super: "java/lang/RuntimeException"},
		{Name: "java/lang/ArithmeticException", Super: "java/lang/RuntimeException"},
		{Name: "java/lang/ClassCastException", Super: "java/lang/RuntimeException"},
		{Name: "java/lang/IndexOutOfBoundsException", Super: "java/lang/RuntimeException"},
		{Name: "java/lang/ArrayIndexOutOfBoundsException", Super: "java/lang/IndexOutOfBoundsException"},
		{Name: "java/lang/UnsupportedOperationException", Super: "java/lang/RuntimeException"},
	} {
		h.Add(c)
	}
	return h
}

const maxHierarchyDepth = 256

// superChain lists name followed by its resolvable superclasses.
func superChain(h ClassHierarchy, name string) ([]string, bool) {
	chain := []string{name}
	seen := map[string]bool{name: true}
	for len(chain) < maxHierarchyDepth {
		info, ok := h.Lookup(chain[len(chain)-1])
		if !ok {
			return chain, false
		}
		if info.Super == "" || seen[info.Super] {
			return chain, true
		}
		seen[info.Super] = true
		chain = append(chain, info.Super)
	}
	return chain, false
}

// IsAssignable reports whether a value of class source may be stored where
// target is expected. Interfaces are treated as java/lang/Object, as the
// verifier does.
func IsAssignable(h ClassHierarchy, target, source string) bool {
	if target == source || target == UniversalObject {
		return true
	}
	if info, ok := h.Lookup(target); ok && info.Interface {
		return true
	}
	chain, _ := superChain(h, source)
	for _, c := range chain {
		if c == target {
			return true
		}
	}
	return false
}

// assignableWhenKnown is IsAssignable for reference descriptors that only
// says no when the hierarchy resolves enough to be sure. Classes it cannot
// resolve are accepted, since joins over them already widen to
// java/lang/Object.
func assignableWhenKnown(h ClassHierarchy, target, source string) bool {
	if target == source || target == UniversalObject || h == nil {
		return true
	}
	targetArray, sourceArray := ArrayDimensions(target) > 0, ArrayDimensions(source) > 0
	switch {
	case targetArray && sourceArray:
		tc, sc := target[1:], source[1:]
		if isReferenceDescriptor(tc) && isReferenceDescriptor(sc) {
			return assignableWhenKnown(h, internalName(tc), internalName(sc))
		}
		return tc == sc
	case sourceArray:
		// Arrays implement Cloneable and Serializable only.
		info, ok := h.Lookup(target)
		return !ok || info.Interface
	case targetArray:
		_, complete := superChain(h, source)
		return !complete
	}
	info, ok := h.Lookup(target)
	if !ok || info.Interface {
		return true
	}
	chain, complete := superChain(h, source)
	for _, c := range chain {
		if c == target {
			return true
		}
	}
	return !complete
}

func isReferenceDescriptor(desc string) bool {
	return desc != "" && (desc[0] == 'L' || desc[0] == '[')
}

// internalName turns a reference field descriptor back into the form
// Object elements carry.
func internalName(desc string) string {
	if desc[0] == 'L' && len(desc) > 2 && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return desc
}

// CommonSuperType returns the nearest common superclass of two classes,
// walking incoming's superclass chain against existing's. Interfaces and
// classes the hierarchy cannot resolve fall back to java/lang/Object.
func CommonSuperType(h ClassHierarchy, existing, incoming string) string {
	if existing == incoming {
		return incoming
	}
	if h == nil {
		return UniversalObject
	}
	ei, ok := h.Lookup(existing)
	if !ok || ei.Interface {
		return UniversalObject
	}
	ii, ok := h.Lookup(incoming)
	if !ok || ii.Interface {
		return UniversalObject
	}
	existingChain, _ := superChain(h, existing)
	ancestors := make(map[string]bool, len(existingChain))
	for _, c := range existingChain {
		ancestors[c] = true
	}
	incomingChain, _ := superChain(h, incoming)
	for _, c := range incomingChain {
		if ancestors[c] {
			return c
		}
	}
	return UniversalObject
}
