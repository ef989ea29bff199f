package pagination

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNew(t *testing.T) {
	tests := []struct {
		number, limit int
		want          Page
	}{
		{0, 0, Page{Number: 1, Limit: 12}},
		{-3, 5, Page{Number: 1, Limit: 5}},
		{2, 500, Page{Number: 2, Limit: 100}},
		{4, 10, Page{Number: 4, Limit: 10}},
	}

	for _, tt := range tests {
		if got := New(tt.number, tt.limit); got != tt.want {
			t.Errorf("New(%d, %d): expected %+v, got %+v", tt.number, tt.limit, tt.want, got)
		}
	}
}

func TestOffset(t *testing.T) {
	if got := New(3, 10).Offset(); got != 20 {
		t.Fatalf("expected offset 20, got %d", got)
	}
	if got := New(1, 10).Offset(); got != 0 {
		t.Fatalf("expected offset 0, got %d", got)
	}
}

func TestMeta(t *testing.T) {
	tests := []struct {
		name  string
		page  Page
		total int
		want  Meta
	}{
		{
			name:  "empty",
			page:  New(1, 10),
			total: 0,
			want:  Meta{Total: 0, Page: 1, Limit: 10, TotalPages: 0},
		},
		{
			name:  "partial last page",
			page:  New(1, 10),
			total: 23,
			want:  Meta{Total: 23, Page: 1, Limit: 10, TotalPages: 3, HasNextPage: true},
		},
		{
			name:  "exact pages",
			page:  New(2, 10),
			total: 20,
			want:  Meta{Total: 20, Page: 2, Limit: 10, TotalPages: 2, HasPrevPage: true},
		},
		{
			name:  "middle",
			page:  New(2, 5),
			total: 11,
			want:  Meta{Total: 11, Page: 2, Limit: 5, TotalPages: 3, HasNextPage: true, HasPrevPage: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.page.Meta(tt.total)); diff != "" {
				t.Fatalf("meta mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
