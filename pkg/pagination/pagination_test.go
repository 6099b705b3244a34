package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Limit: DefaultLimit, Offset: 0}},
		{"?limit=5&offset=10", Params{Limit: 5, Offset: 10}},
		{"?limit=5&skip=15", Params{Limit: 5, Offset: 15}},
		{"?limit=1000", Params{Limit: MaxLimit, Offset: 0}},
		{"?limit=-3&offset=-1", Params{Limit: DefaultLimit, Offset: 0}},
		{"?limit=abc", Params{Limit: DefaultLimit, Offset: 0}},
	}
	for _, tt := range tests {
		if got := paramsFor(tt.query); got != tt.want {
			t.Errorf("FromContext(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 0})
	if !resp.HasMore {
		t.Error("expected has_more when more items remain")
	}

	last := NewResponse([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if last.HasMore {
		t.Error("expected no more items on the last page")
	}
}

func TestNewResponse_NilItemsEncodeAsArray(t *testing.T) {
	raw, err := json.Marshal(NewResponse[int](nil, 0, Params{Limit: 10}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["items"].([]any); !ok {
		t.Errorf("expected items to be an array, got %s", raw)
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := Window(items, Params{Limit: 2, Offset: 1}); len(got) != 2 || got[0] != 2 {
		t.Errorf("unexpected window %v", got)
	}
	if got := Window(items, Params{Limit: 10, Offset: 3}); len(got) != 2 {
		t.Errorf("unexpected tail %v", got)
	}
	if got := Window(items, Params{Limit: 2, Offset: 9}); len(got) != 0 {
		t.Errorf("expected empty window, got %v", got)
	}
}
