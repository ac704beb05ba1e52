package analysis

import (
	"strconv"

	"github.com/FocuswithJustin/LyricScope/core/cache"
	"github.com/FocuswithJustin/LyricScope/core/digest"
)

// Analyzer memoizes Analyze results by buffer digest and options. Results
// are shared between callers and must be treated as read-only.
type Analyzer struct {
	opts  Options
	cache *cache.LRU[string, *Result]
}

// NewAnalyzer creates an Analyzer that keeps up to size results. A size of
// 0 uses the cache default.
func NewAnalyzer(opts Options, size int) *Analyzer {
	if size < 0 {
		size = 0
	}
	return &Analyzer{
		opts:  opts.withDefaults(),
		cache: cache.New[string, *Result](size),
	}
}

// Options returns the default options of the analyzer.
func (a *Analyzer) Options() Options {
	return a.opts
}

// Analyze analyzes buffer with the analyzer's default options.
func (a *Analyzer) Analyze(buffer string) *Result {
	return a.AnalyzeWith(buffer, a.opts)
}

// AnalyzeWith analyzes buffer with explicit options. Zero fields fall back
// to the analyzer's defaults.
func (a *Analyzer) AnalyzeWith(buffer string, opts Options) *Result {
	if opts.Marker == "" {
		opts.Marker = a.opts.Marker
	}
	if opts.Palette <= 0 {
		opts.Palette = a.opts.Palette
	}

	sum := digest.String(buffer)
	key := cacheKey(sum, opts)
	if res, ok := a.cache.Get(key); ok {
		return res
	}
	res := analyze(buffer, sum, opts)
	a.cache.Put(key, res)
	return res
}

// Stats returns cache statistics.
func (a *Analyzer) Stats() cache.Stats {
	return a.cache.Stats()
}

func cacheKey(d string, opts Options) string {
	return d + "|" + strconv.Itoa(opts.Palette) + "|" + opts.Marker
}
