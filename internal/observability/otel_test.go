package observability

import (
	"reflect"
	"testing"
)

func TestSampleRatio(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
	}{
		{"empty defaults", "", 0.1},
		{"garbage defaults", "lots", 0.1},
		{"parses", "0.25", 0.25},
		{"clamps low", "-3", 0},
		{"clamps high", "7", 1},
		{"trims", " 0.5 ", 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sampleRatio(tc.raw); got != tc.want {
				t.Fatalf("sampleRatio(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", nil},
		{"single", "authorization=Bearer abc", map[string]string{"authorization": "Bearer abc"}},
		{
			"multiple with spaces",
			" a=1 , b = 2 ",
			map[string]string{"a": "1", "b": "2"},
		},
		{"malformed entries dropped", "noequals,=novalue,key=", nil},
		{"keeps the valid part", "bad,x=y", map[string]string{"x": "y"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseHeaders(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parseHeaders(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}
