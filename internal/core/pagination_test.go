package core

import (
	"reflect"
	"testing"
)

func TestNewPagination_Clamps(t *testing.T) {
	tests := []struct {
		name                 string
		page, perPage, total int
		wantPage, wantPages  int
		wantOffset           int
	}{
		{"first page", 1, 50, 120, 1, 3, 0},
		{"middle page", 2, 50, 120, 2, 3, 50},
		{"page below one", -4, 50, 120, 1, 3, 0},
		{"page past the end", 9, 50, 120, 3, 3, 100},
		{"exact multiple", 2, 50, 100, 2, 2, 50},
		{"empty listing", 3, 50, 0, 1, 1, 0},
		{"zero page size", 1, 0, 3, 1, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.perPage, tt.total)
			if p.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", p.Page, tt.wantPage)
			}
			if p.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.wantPages)
			}
			if p.Offset() != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", p.Offset(), tt.wantOffset)
			}
		})
	}
}

func TestPagination_PrevNext(t *testing.T) {
	first := NewPagination(1, 10, 30)
	if first.HasPrev() || first.PrevNum() != 0 {
		t.Errorf("first page should have no previous page")
	}
	if !first.HasNext() || first.NextNum() != 2 {
		t.Errorf("first page next = %d, want 2", first.NextNum())
	}

	last := NewPagination(3, 10, 30)
	if last.HasNext() || last.NextNum() != 0 {
		t.Errorf("last page should have no next page")
	}
	if !last.HasPrev() || last.PrevNum() != 2 {
		t.Errorf("last page prev = %d, want 2", last.PrevNum())
	}
}

func TestPagination_IterPages(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		pages int
		want  []int
	}{
		{"single page", 1, 1, []int{1}},
		{"few pages all shown", 3, 5, []int{1, 2, 3, 4, 5}},
		{"start of long listing", 1, 20, []int{1, 2, 3, 0, 19, 20}},
		{"middle of long listing", 10, 20, []int{1, 2, 0, 8, 9, 10, 11, 12, 0, 19, 20}},
		{"end of long listing", 20, 20, []int{1, 2, 0, 18, 19, 20}},
		{"gap swallowed by left edge", 5, 20, []int{1, 2, 3, 4, 5, 6, 7, 0, 19, 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, 1, tt.pages)
			got := p.IterPages()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("IterPages() = %v, want %v", got, tt.want)
			}
		})
	}
}
