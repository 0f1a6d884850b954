package utils

import (
	"net/url"
	"testing"
)

func TestHashKeyIsStableAndPartSensitive(t *testing.T) {
	a := HashKey("1.2.3.4", "ua", "site")
	if a != HashKey("1.2.3.4", "ua", "site") {
		t.Fatal("hash not stable")
	}
	if a == HashKey("1.2.3.4", "ua", "other") {
		t.Fatal("different parts produced the same key")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
}

func TestToAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://x.test/shop/cart")
	tests := map[string]string{
		"/img/a.png":             "https://x.test/img/a.png",
		"b.png":                  "https://x.test/shop/b.png",
		"https://cdn.test/c.png": "https://cdn.test/c.png",
		"//cdn.test/d.png":       "https://cdn.test/d.png",
	}
	for in, want := range tests {
		got, err := ToAbsoluteURL(base, in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Errorf("ToAbsoluteURL(%q) = %q, want %q", in, got, want)
		}
	}
}
