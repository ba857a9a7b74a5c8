package digest

import (
	"sort"
	"sync"
)

var (
	registry map[string]Algorithm = map[string]Algorithm{}
	regLock  sync.RWMutex
)

// Func is one transform from bytes to a Digest. Implementations must be pure
// and reentrant, and must not keep a reference to data after returning.
type Func func(data []byte) Digest

// Algorithm is a named transform.
type Algorithm struct {
	Func Func

	// MemoryHard is set for transforms that are expensive on purpose and are
	// suitable for the Full variant.
	MemoryHard bool
}

func Register(name string, alg Algorithm) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = alg
}

func Get(name string) (Algorithm, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

func Algorithms() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for name := range registry {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
