package grid

import (
	"reflect"
	"testing"
)

func TestSnapshotNormalize(t *testing.T) {
	got := Snapshot{
		Page: 0,
		Size: -1,
		Sort: []SortRule{{Field: " name ", Order: "sideways"}, {Field: ""}},
		Filters: Filters{
			"empty":    "",
			"nil":      nil,
			"none":     []string{},
			"archived": false,
			"count":    0,
			"status":   []string{"a"},
		},
	}.Normalize()

	expect := Snapshot{
		Page:    1,
		Size:    DefaultPageSize,
		Sort:    []SortRule{{Field: "name", Order: SortAsc}},
		Filters: Filters{"archived": false, "count": 0, "status": []string{"a"}},
	}
	if !reflect.DeepEqual(expect, got) {
		t.Fatalf("normalize mismatch:\nwant: %#v\n got: %#v", expect, got)
	}
}

func TestSnapshotFingerprintIgnoresEmptyValues(t *testing.T) {
	a := Snapshot{Page: 1, Size: 10, Filters: Filters{"q": "x", "status": ""}}
	b := Snapshot{Page: 1, Size: 10, Filters: Filters{"q": "x"}}
	if !a.Equal(b) {
		t.Fatalf("expected equal fingerprints: %s vs %s", a.Fingerprint(), b.Fingerprint())
	}
	if a.Equal(b.WithPage(2)) {
		t.Fatalf("expected different fingerprints for different pages")
	}
	if a.FiltersFingerprint() != b.WithPage(7).FiltersFingerprint() {
		t.Fatalf("filters fingerprint should ignore paging")
	}
	if (Snapshot{}).FiltersFingerprint() != "{}" {
		t.Fatalf("expected empty filters fingerprint")
	}
}

func TestSnapshotWithHelpersDoNotMutate(t *testing.T) {
	base := Snapshot{Page: 2, Size: 10, Filters: Filters{"q": "x"}}
	next := base.WithFilter("q", "").WithFilter("status", "open").WithPage(1)
	if base.Filters["q"] != "x" || base.Page != 2 {
		t.Fatalf("base mutated: %+v", base)
	}
	if _, ok := next.Filters["q"]; ok {
		t.Fatalf("empty value should remove the filter")
	}
	if next.Filters["status"] != "open" || next.Page != 1 {
		t.Fatalf("unexpected next %+v", next)
	}
}

func TestFilterValueChanged(t *testing.T) {
	cases := []struct {
		prev, next Filters
		expect     bool
	}{
		{prev: nil, next: nil, expect: false},
		{prev: Filters{"q": ""}, next: nil, expect: false},
		{prev: Filters{"q": "a"}, next: Filters{"q": "a", "x": 1}, expect: false},
		{prev: Filters{"q": "a"}, next: Filters{"q": "b"}, expect: true},
		{prev: nil, next: Filters{"q": false}, expect: true},
	}
	for i, tc := range cases {
		if got := FilterValueChanged(tc.prev, tc.next, "q"); got != tc.expect {
			t.Fatalf("case %d: expected %v, got %v", i, tc.expect, got)
		}
	}
}

func TestSlotKeys(t *testing.T) {
	key := NewKey[int]("count")
	other := NewKey[string]("count")

	slots := key.Set(nil, 3)
	if v, ok := key.Get(slots); !ok || v != 3 {
		t.Fatalf("expected 3, got %v %v", v, ok)
	}
	if _, ok := other.Get(slots); ok {
		t.Fatalf("typed get must fail for a different type")
	}
	if other.Must(slots) != "" {
		t.Fatalf("Must should return the zero value on mismatch")
	}
	next := key.Set(slots, 4)
	if key.Must(slots) != 3 || key.Must(next) != 4 {
		t.Fatalf("Set must copy the slots")
	}
	if !reflect.DeepEqual(key.Patch(5), Slots{"count": 5}) {
		t.Fatalf("unexpected patch")
	}
}

func TestPaginationAndPageCount(t *testing.T) {
	if PageCount(0, 10) != 0 || PageCount(11, 10) != 2 || PageCount(10, 0) != 0 {
		t.Fatalf("unexpected page counts")
	}
	p := NewPagination(Snapshot{Page: 2, Size: 10}, 3, IntPtr(25))
	if !p.HasPrev || !p.HasNext || *p.Total != 25 {
		t.Fatalf("unexpected pagination %+v", p)
	}
	last := NewPagination(Snapshot{Page: 3, Size: 10}, 3, nil)
	if last.HasNext {
		t.Fatalf("last page must not have next")
	}
}
