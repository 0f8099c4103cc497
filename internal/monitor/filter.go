package monitor

import (
	"sync/atomic"

	"notifsnd/internal/classify"
)

// FilterHolder lets a config reload swap the filter while the pipeline and
// the tracker keep reading it.
type FilterHolder struct {
	p atomic.Pointer[classify.Filter]
}

func NewFilterHolder(f *classify.Filter) *FilterHolder {
	h := &FilterHolder{}
	h.Store(f)
	return h
}

func (h *FilterHolder) Load() *classify.Filter { return h.p.Load() }

func (h *FilterHolder) Store(f *classify.Filter) {
	if f == nil {
		f = classify.NewFilter(classify.FilterOptions{})
	}
	h.p.Store(f)
}

func (h *FilterHolder) ShouldIgnore(pkg, title, text string) bool {
	return h.Load().ShouldIgnore(pkg, title, text)
}

func (h *FilterHolder) IgnoresKey(key string) bool { return h.Load().IgnoresKey(key) }
