// Package filter classifies Java class names into coarse categories used by
// class histograms.
package filter

import (
	"strings"
	"sync"
)

// ClassCategory represents the category of a class.
type ClassCategory int

const (
	CategoryUnknown ClassCategory = iota
	// CategoryPrimitive covers primitive arrays.
	CategoryPrimitive
	// CategoryJDK covers the Java class library and JVM internals.
	CategoryJDK
	// CategoryFramework covers deep framework internals (buffer pools,
	// proxies, logging plumbing).
	CategoryFramework
	// CategoryApplication is everything else.
	CategoryApplication
	// CategoryBusiness covers classes under a configured business prefix.
	CategoryBusiness
)

var categoryNames = map[ClassCategory]string{
	CategoryUnknown:     "unknown",
	CategoryPrimitive:   "primitive",
	CategoryJDK:         "jdk",
	CategoryFramework:   "framework",
	CategoryApplication: "application",
	CategoryBusiness:    "business",
}

// String returns the string representation of the category.
func (c ClassCategory) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "unknown"
}

// ParseCategory maps a category name back to its value.
func ParseCategory(s string) (ClassCategory, bool) {
	for c, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return c, true
		}
	}
	return CategoryUnknown, false
}

var primitiveArrays = map[string]bool{
	"boolean[]": true,
	"byte[]":    true,
	"char[]":    true,
	"short[]":   true,
	"int[]":     true,
	"long[]":    true,
	"float[]":   true,
	"double[]":  true,
}

var defaultJDKPrefixes = []string{
	"java.", "javax.", "sun.", "com.sun.", "jdk.",
}

var defaultFrameworkPrefixes = []string{
	"org.springframework.aop.framework.",
	"org.springframework.beans.factory.support.",
	"org.springframework.util.ConcurrentReferenceHashMap",
	"io.netty.buffer.Pool",
	"io.netty.util.internal.",
	"io.netty.util.Recycler",
	"com.google.common.collect.",
	"com.google.common.cache.",
	"org.slf4j.impl.",
	"ch.qos.logback.core.",
	"ch.qos.logback.classic.spi.",
	"com.fasterxml.jackson.core.json.",
	"com.fasterxml.jackson.databind.cfg.",
	"net.bytebuddy.",
	"io.opentelemetry.javaagent.",
}

// ClassFilter classifies class names. It is safe for concurrent use.
type ClassFilter struct {
	mu                sync.RWMutex
	jdkPrefixes       []string
	frameworkPrefixes []string
	businessPrefixes  []string
	cache             map[string]ClassCategory
	cacheSize         int
}

// NewClassFilter creates a filter with the default JDK and framework rules.
func NewClassFilter(businessPrefixes ...string) *ClassFilter {
	f := &ClassFilter{
		jdkPrefixes:       append([]string(nil), defaultJDKPrefixes...),
		frameworkPrefixes: append([]string(nil), defaultFrameworkPrefixes...),
		cache:             make(map[string]ClassCategory),
		cacheSize:         10000,
	}
	for _, p := range businessPrefixes {
		f.AddBusinessPrefix(p)
	}
	return f
}

// Classify returns the category of a class. Object arrays take the category
// of their element class.
func (f *ClassFilter) Classify(className string) ClassCategory {
	if className == "" {
		return CategoryUnknown
	}

	f.mu.RLock()
	cat, ok := f.cache[className]
	f.mu.RUnlock()
	if ok {
		return cat
	}

	cat = f.classify(className)

	f.mu.Lock()
	if len(f.cache) < f.cacheSize {
		f.cache[className] = cat
	}
	f.mu.Unlock()
	return cat
}

func (f *ClassFilter) classify(className string) ClassCategory {
	if primitiveArrays[className] {
		return CategoryPrimitive
	}
	elem := className
	for strings.HasSuffix(elem, "[]") {
		elem = strings.TrimSuffix(elem, "[]")
	}
	if primitiveArrays[elem+"[]"] {
		return CategoryPrimitive
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, p := range f.businessPrefixes {
		if strings.HasPrefix(elem, p) {
			return CategoryBusiness
		}
	}
	for _, p := range f.jdkPrefixes {
		if strings.HasPrefix(elem, p) {
			return CategoryJDK
		}
	}
	for _, p := range f.frameworkPrefixes {
		if strings.HasPrefix(elem, p) {
			return CategoryFramework
		}
	}
	return CategoryApplication
}

// IsApplicationLevel reports whether the class is neither JDK, framework
// internal nor a primitive array.
func (f *ClassFilter) IsApplicationLevel(className string) bool {
	switch f.Classify(className) {
	case CategoryApplication, CategoryBusiness:
		return true
	}
	return false
}

// AddBusinessPrefix marks classes under prefix as CategoryBusiness.
func (f *ClassFilter) AddBusinessPrefix(prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.businessPrefixes {
		if p == prefix {
			return
		}
	}
	f.businessPrefixes = append(f.businessPrefixes, prefix)
	f.cache = make(map[string]ClassCategory)
}

// BusinessPrefixes returns the configured business prefixes.
func (f *ClassFilter) BusinessPrefixes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.businessPrefixes...)
}

// AddFrameworkPrefix adds a framework internal prefix.
func (f *ClassFilter) AddFrameworkPrefix(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frameworkPrefixes = append(f.frameworkPrefixes, prefix)
	f.cache = make(map[string]ClassCategory)
}

// CacheStats returns the number of cached classifications and the cache limit.
func (f *ClassFilter) CacheStats() (size int, maxSize int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache), f.cacheSize
}

// DefaultFilter is the shared filter without business prefixes.
var DefaultFilter = NewClassFilter()

// Classify classifies a class using DefaultFilter.
func Classify(className string) ClassCategory {
	return DefaultFilter.Classify(className)
}
