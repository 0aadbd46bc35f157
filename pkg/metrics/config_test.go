package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestResolve(t *testing.T) {
	reg := prometheus.NewRegistry()

	tests := []struct {
		name   string
		config Config
		want   func(*Registry) bool
	}{
		{"nil registerer", Config{Enabled: true}, func(r *Registry) bool { return r == DefaultRegistry }},
		{"default registerer", DefaultConfig(), func(r *Registry) bool { return r == DefaultRegistry }},
		{"custom registerer", Config{Enabled: true, Registry: reg}, func(r *Registry) bool { return r != DefaultRegistry }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.want(tt.config.Resolve()) {
				t.Error("unexpected registry")
			}
		})
	}
}

func TestResolveSharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := Config{Enabled: true, Registry: reg}.Resolve()
	b := Config{Enabled: true, Registry: reg, Namespace: DefaultNamespace}.Resolve()
	if a != b {
		t.Fatal("same registerer and namespace must resolve to one Registry")
	}

	c := Config{Enabled: true, Registry: reg, Namespace: "other"}.Resolve()
	if c == a {
		t.Fatal("different namespace must resolve to a new Registry")
	}

	a.PagesProduced.WithLabelValues("p").Add(3)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "pageflow_pipeline_pages_produced_total" {
			found = true
		}
	}
	if !found {
		t.Error("pages_produced_total not registered")
	}
}

func TestResolveLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := Config{Enabled: true, Registry: reg, Labels: prometheus.Labels{"instance": "a"}}.Resolve()
	again := Config{Enabled: true, Registry: reg, Labels: prometheus.Labels{"instance": "a"}}.Resolve()
	b := Config{Enabled: true, Registry: reg, Labels: prometheus.Labels{"instance": "b"}}.Resolve()
	if a != again {
		t.Fatal("equal labels must resolve to one Registry")
	}
	if a == b {
		t.Fatal("different labels must resolve to different Registries")
	}

	a.PagesCompleted.WithLabelValues("p").Inc()
	b.PagesCompleted.WithLabelValues("p").Add(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "pageflow_pipeline_pages_completed_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "instance" {
					got[lp.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if got["a"] != 1 || got["b"] != 2 {
		t.Fatalf("unexpected per-instance values %v", got)
	}
}
