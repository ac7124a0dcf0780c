package report

import (
	"context"
	"strings"
	"testing"
)

func TestCacheKey_Deterministic(t *testing.T) {
	a := CacheKey("clinic_a", "r1", map[string]string{"startDate": "2024-01-01", "endDate": "2024-01-31"})
	b := CacheKey("clinic_a", "r1", map[string]string{"endDate": "2024-01-31", "startDate": "2024-01-01"})
	if a != b {
		t.Errorf("key depends on map order: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "opdreports:clinic_a:r1:") {
		t.Errorf("unexpected key %s", a)
	}
}

func TestCacheKey_Distinct(t *testing.T) {
	base := map[string]string{"startDate": "2024-01-01"}
	keys := map[string]bool{
		CacheKey("clinic_a", "r1", base): true,
		CacheKey("clinic_b", "r1", base): true,
		CacheKey("clinic_a", "r2", base): true,
		CacheKey("clinic_a", "r1", map[string]string{"startDate": "2024-02-01"}): true,
		// "a=b" + "c" must not collide with "a" + "b=c".
		CacheKey("clinic_a", "r1", map[string]string{"a": "b\nc=d"}): true,
		CacheKey("clinic_a", "r1", map[string]string{"a": "b", "c": "d"}): true,
	}
	if len(keys) != 6 {
		t.Errorf("expected 6 distinct keys, got %d", len(keys))
	}
}

func TestNopCache(t *testing.T) {
	var c Cache = NopCache{}
	if err := c.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Error("NopCache should never hit")
	}
}

func TestNewRedisCacheFromURL_BadURL(t *testing.T) {
	if _, err := NewRedisCacheFromURL(context.Background(), "not a url", 0); err == nil {
		t.Fatal("expected parse error")
	}
}
