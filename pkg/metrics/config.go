package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, DefaultRegistry is used.
	Registry prometheus.Registerer

	// Namespace overrides the default "pageflow" namespace for metrics.
	Namespace string

	// Labels are attached as constant labels to every collector, e.g. to
	// tell two processes apart on one scrape target.
	Labels prometheus.Labels
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: DefaultNamespace,
	}
}

type resolveKey struct {
	registerer prometheus.Registerer
	namespace  string
	labels     string
}

var (
	resolvedMu sync.Mutex
	resolved   = map[resolveKey]*Registry{}
)

// Resolve returns the Registry described by c. A nil or default Registerer
// with the default namespace and no labels selects DefaultRegistry. Any other combination
// registers its collectors on first use and returns the same Registry on
// later calls, so components sharing a registerer share collectors.
func (c Config) Resolve() *Registry {
	ns := c.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	reg := c.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if reg == prometheus.DefaultRegisterer && ns == DefaultNamespace && len(c.Labels) == 0 {
		return DefaultRegistry
	}

	resolvedMu.Lock()
	defer resolvedMu.Unlock()

	key := resolveKey{registerer: reg, namespace: ns, labels: labelKey(c.Labels)}
	if r, ok := resolved[key]; ok {
		return r
	}
	if len(c.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(c.Labels, reg)
	}
	r := NewRegistryWithNamespace(reg, ns)
	resolved[key] = r
	return r
}

func labelKey(labels prometheus.Labels) string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(labels[name])
		b.WriteByte(',')
	}
	return b.String()
}

// Instrumentable is an interface for components that can be instrumented with metrics.
type Instrumentable interface {
	// EnableMetrics enables metrics collection for this component.
	EnableMetrics(config Config) error

	// DisableMetrics disables metrics collection for this component.
	DisableMetrics()

	// MetricsEnabled returns true if metrics are currently enabled.
	MetricsEnabled() bool
}
