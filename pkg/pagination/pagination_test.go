package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, target string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "/")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor(t, "/?limit=20&offset=10")
	if p.Limit != 20 || p.Offset != 10 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestFromContext_UnderscoreParams(t *testing.T) {
	p := paramsFor(t, "/?_count=25&_offset=5")
	if p.Limit != 25 || p.Offset != 5 {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := paramsFor(t, "/?_count=50000")
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := paramsFor(t, "/?offset=-3")
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 5, 2, 0)
	if !r.HasMore {
		t.Error("expected has_more")
	}
	r = NewResponse([]int{5}, 5, 2, 4)
	if r.HasMore {
		t.Error("expected last page")
	}
}

func TestSlice(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		p    Params
		want []string
	}{
		{Params{Limit: 2, Offset: 0}, []string{"a", "b"}},
		{Params{Limit: 2, Offset: 4}, []string{"e"}},
		{Params{Limit: 10, Offset: 1}, []string{"b", "c", "d", "e"}},
		{Params{Limit: 2, Offset: 5}, []string{}},
	}
	for _, tt := range tests {
		got := Slice(items, tt.p)
		if got == nil {
			t.Fatalf("Slice(%+v) returned nil", tt.p)
		}
		if len(got) != len(tt.want) {
			t.Errorf("Slice(%+v) = %v, want %v", tt.p, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Slice(%+v) = %v, want %v", tt.p, got, tt.want)
				break
			}
		}
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(25) {
		t.Error("expected next page")
	}
	if p.NextOffset() != 10 {
		t.Errorf("expected next offset 10, got %d", p.NextOffset())
	}
	p.Offset = 20
	if p.HasNext(25) {
		t.Error("expected no next page")
	}
}
