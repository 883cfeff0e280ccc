package layering

import (
	"reflect"
	"testing"
)

type settings struct {
	Enabled *bool
	Limits  map[string]int
	Tags    []string
	Theme   *theme
	hidden  string
}

type theme struct {
	Density string
	Rows    int
}

func boolPtr(v bool) *bool { return &v }

func TestMergeLayers(t *testing.T) {
	cases := []struct {
		name   string
		layers []settings
		expect settings
	}{
		{
			name:   "weak only",
			layers: []settings{{}, {Limits: map[string]int{"page": 20}}},
			expect: settings{Limits: map[string]int{"page": 20}},
		},
		{
			name: "strong map keys win, weak keys survive",
			layers: []settings{
				{Limits: map[string]int{"page": 50}},
				{Limits: map[string]int{"page": 20, "max": 200}},
			},
			expect: settings{Limits: map[string]int{"page": 50, "max": 200}},
		},
		{
			name: "nil pointer falls through, scalars of the strong layer win",
			layers: []settings{
				{Theme: &theme{Density: "compact"}},
				{Enabled: boolPtr(false), Theme: &theme{Density: "standard", Rows: 36}},
			},
			expect: settings{Enabled: boolPtr(false), Theme: &theme{Density: "compact"}},
		},
		{
			name: "slices replace",
			layers: []settings{
				{Tags: []string{"a"}},
				{Tags: []string{"b", "c"}},
			},
			expect: settings{Tags: []string{"a"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeLayers(tc.layers...)
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("merged mismatch:\nwant: %#v\n got: %#v", tc.expect, got)
			}
		})
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	type sample struct {
		Value int
	}
	var zero sample
	if got := MergeLayers[sample](); got != zero {
		t.Fatalf("expected zero value, got %+v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := settings{
		Limits: map[string]int{"page": 20},
		Tags:   []string{"a"},
		Theme:  &theme{Density: "compact"},
		hidden: "kept",
	}
	cloned := Clone(original)
	cloned.Limits["page"] = 99
	cloned.Tags[0] = "z"
	cloned.Theme.Density = "comfortable"

	if original.Limits["page"] != 20 || original.Tags[0] != "a" || original.Theme.Density != "compact" {
		t.Fatalf("clone shares state with original: %+v", original)
	}
	if cloned.hidden != "kept" {
		t.Fatalf("expected unexported field to be copied, got %q", cloned.hidden)
	}
}

func TestOverlay(t *testing.T) {
	type options struct {
		Rows   []int
		Size   int
		Label  string
		State  map[string]any
		Meta   map[string]any
		OnDone func() string
	}
	base := options{
		Rows:   []int{1, 2},
		Size:   20,
		Label:  "base",
		State:  map[string]any{"a": 1, "b": 2},
		Meta:   map[string]any{"x": true},
		OnDone: func() string { return "base" },
	}
	patch := options{
		Size:   50,
		State:  map[string]any{"b": 3},
		Meta:   map[string]any{"y": 1},
		OnDone: func() string { return "patch" },
	}

	got := Overlay(base, patch, "State")
	if got.Size != 50 || got.Label != "base" || len(got.Rows) != 2 {
		t.Fatalf("unexpected scalar overlay %+v", got)
	}
	if !reflect.DeepEqual(got.State, map[string]any{"a": 1, "b": 3}) {
		t.Fatalf("expected one-level merge of State, got %v", got.State)
	}
	if !reflect.DeepEqual(got.Meta, map[string]any{"y": 1}) {
		t.Fatalf("expected Meta replaced when not deep, got %v", got.Meta)
	}
	if got.OnDone() != "patch" {
		t.Fatalf("expected non-nil func to win")
	}
	if base.State["b"] != 2 {
		t.Fatalf("overlay mutated base state")
	}
}

func TestOverlayMapsAndScalars(t *testing.T) {
	merged := Overlay(map[string]int{"a": 1}, map[string]int{"b": 2})
	if !reflect.DeepEqual(merged, map[string]int{"a": 1, "b": 2}) {
		t.Fatalf("unexpected map overlay %v", merged)
	}
	if Overlay(5, 0) != 5 {
		t.Fatalf("zero patch should keep base")
	}
	if Overlay("a", "b") != "b" {
		t.Fatalf("non-zero patch should win")
	}
}

func TestMergeMaps(t *testing.T) {
	if MergeMaps[map[string]int](nil, nil) != nil {
		t.Fatalf("expected nil for two nil maps")
	}
	base := map[string]int{"a": 1}
	got := MergeMaps(base, map[string]int{"a": 2, "b": 3})
	if got["a"] != 2 || got["b"] != 3 || base["a"] != 1 {
		t.Fatalf("unexpected merge %v (base %v)", got, base)
	}
}

func TestMergeLayersNestedMaps(t *testing.T) {
	flags := map[string]any{"page_size": 100, "selection": map[string]any{"mode": "cross-page"}}
	env := map[string]any{"page_size": "10", "density": "compact", "selection": map[string]any{"mode": "page", "max_selection": 50}}

	got := MergeLayers(flags, env)
	want := map[string]any{
		"page_size": 100,
		"density":   "compact",
		"selection": map[string]any{"mode": "cross-page", "max_selection": 50},
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("merged mismatch:\nwant: %#v\n got: %#v", want, got)
	}
	got["selection"].(map[string]any)["mode"] = "changed"
	if flags["selection"].(map[string]any)["mode"] != "cross-page" {
		t.Fatalf("merge must not share nested maps with its inputs")
	}
}
