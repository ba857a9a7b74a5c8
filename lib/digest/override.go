package digest

// WithFunc returns a copy of e whose v transform is replaced by fn. It exists
// so tests in other packages can inject slow or faulty transforms.
func (e *Engine) WithFunc(v Variant, name string, fn Func) *Engine {
	result := *e
	switch v {
	case Fast:
		result.fast, result.fastName = fn, name
	default:
		result.full, result.fullName = fn, name
	}
	return &result
}
