package pagination

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        Params
		wantPage  int
		wantLimit int
	}{
		{name: "zero values", in: Params{}, wantPage: 1, wantLimit: DefaultLimit},
		{name: "negative page", in: Params{Page: -2, Limit: 10}, wantPage: 1, wantLimit: 10},
		{name: "limit above max", in: Params{Page: 3, Limit: 500}, wantPage: 3, wantLimit: MaxLimit},
		{name: "valid passthrough", in: Params{Page: 2, Limit: 50}, wantPage: 2, wantLimit: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if got.Page != tt.wantPage || got.Limit != tt.wantLimit {
				t.Fatalf("Normalize() = %+v, want page=%d limit=%d", got, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	if got := (Params{Page: 1, Limit: 25}).Offset(); got != 0 {
		t.Fatalf("first page offset = %d, want 0", got)
	}
	if got := (Params{Page: 4, Limit: 10}).Offset(); got != 30 {
		t.Fatalf("offset = %d, want 30", got)
	}
}

func TestBuildEnvelope(t *testing.T) {
	env := BuildEnvelope(Params{Page: 2, Limit: 10}, 35)
	if env.TotalPages != 4 {
		t.Fatalf("total pages = %d, want 4", env.TotalPages)
	}
	if !env.HasMore {
		t.Fatal("page 2 of 4 should have more")
	}

	last := BuildEnvelope(Params{Page: 4, Limit: 10}, 35)
	if last.HasMore {
		t.Fatal("last page should not report more")
	}

	empty := BuildEnvelope(Params{}, 0)
	if empty.TotalPages != 0 || empty.HasMore {
		t.Fatalf("empty result envelope wrong: %+v", empty)
	}
}
