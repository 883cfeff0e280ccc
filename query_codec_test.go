package grid

import (
	"errors"
	"net/url"
	"reflect"
	"testing"
)

func TestEncodeQuery(t *testing.T) {
	base := url.Values{"tab": {"billing"}, "k_stale": {"x"}}
	snapshot := Snapshot{
		Page: 3,
		Size: 25,
		Sort: []SortRule{{Field: "name", Order: SortAsc}, {Field: "created.at", Order: SortDesc}},
		Filters: Filters{
			"status":   []string{"open", "closed"},
			"archived": false,
			"count":    0,
			"q":        "",
		},
	}

	got := EncodeQuery(base, "k", snapshot)
	expect := url.Values{
		"tab":        {"billing"},
		"k_page":     {"3"},
		"k_size":     {"25"},
		"k_sort":     {"name.asc|created.at.desc"},
		"k_status":   {"open", "closed"},
		"k_archived": {"false"},
		"k_count":    {"0"},
	}
	if !reflect.DeepEqual(expect, got) {
		t.Fatalf("encode mismatch:\nwant: %v\n got: %v", expect, got)
	}
	if base.Get("k_stale") != "x" {
		t.Fatalf("encode must not mutate base")
	}
}

func TestDecodeQuery(t *testing.T) {
	codec := QueryCodec{
		Key:      "k",
		Defaults: Snapshot{Page: 1, Size: 20},
		Parsers: map[string]FilterParser{
			"archived": BoolValue,
			"count":    IntValue,
			"tags":     MultiValue,
		},
	}
	values := url.Values{
		"other":      {"1"},
		"k_page":     {"3"},
		"k_size":     {"nope"},
		"k_sort":     {"created.at.desc|bogus|name.sideways"},
		"k_status":   {"open", "closed"},
		"k_tags":     {"one"},
		"k_archived": {"false"},
		"k_count":    {"0"},
		"k_empty":    {""},
	}
	got, err := codec.Decode(values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	expect := Snapshot{
		Page: 3,
		Size: 20,
		Sort: []SortRule{{Field: "created.at", Order: SortDesc}},
		Filters: Filters{
			"status":   []string{"open", "closed"},
			"tags":     []string{"one"},
			"archived": false,
			"count":    0,
		},
	}
	if !reflect.DeepEqual(expect, got) {
		t.Fatalf("decode mismatch:\nwant: %#v\n got: %#v", expect, got)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	snapshot := Snapshot{Page: 2, Size: 50, Sort: []SortRule{{Field: "name", Order: SortDesc}}, Filters: Filters{"q": "abc"}}
	decoded, err := DecodeQuery(EncodeQuery(nil, "users", snapshot), "users", Snapshot{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(snapshot) {
		t.Fatalf("round trip mismatch: %s vs %s", decoded.Fingerprint(), snapshot.Fingerprint())
	}
}

func TestDecodeQueryParserError(t *testing.T) {
	codec := QueryCodec{Key: "k", Parsers: map[string]FilterParser{"count": IntValue}}
	_, err := codec.Decode(url.Values{"k_count": {"many"}})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestQueryCodecOwns(t *testing.T) {
	codec := QueryCodec{Key: "k"}
	cases := map[string]bool{"k_page": true, "k_": false, "kpage": false, "other": false}
	for name, expect := range cases {
		if got := codec.Owns(name); got != expect {
			t.Fatalf("Owns(%q): expected %v, got %v", name, expect, got)
		}
	}
}

func TestQueryReservedFilterKeysAreEscaped(t *testing.T) {
	codec := QueryCodec{Key: "k", Parsers: map[string]FilterParser{"size": IntValue}}
	snapshot := Snapshot{Page: 4, Size: 10, Filters: Filters{
		"page": "cover",
		"size": 42,
		"sort": "manual",
		"~raw": "x",
		"name": "ada",
	}}

	encoded := codec.Encode(nil, snapshot)
	if encoded.Get("k_page") != "4" || encoded.Get("k_size") != "10" || encoded.Has("k_sort") {
		t.Fatalf("filters must not shadow paging params, got %v", encoded)
	}
	if encoded.Get("k_~page") != "cover" || encoded.Get("k_~~raw") != "x" || encoded.Get("k_name") != "ada" {
		t.Fatalf("unexpected escaped filters %v", encoded)
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(snapshot) {
		t.Fatalf("round trip mismatch: %s vs %s", decoded.Fingerprint(), snapshot.Fingerprint())
	}
}
