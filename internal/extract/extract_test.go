package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain uuid in html",
			text: `<a href="/datasets/view/9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b">Trade stats</a>`,
			want: []string{"9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b"},
		},
		{
			name: "uppercase normalized to lowercase",
			text: `{"id":"ABCD1234-5678-90AB-CDEF-1234567890AB"}`,
			want: []string{"abcd1234-5678-90ab-cdef-1234567890ab"},
		},
		{
			name: "duplicates collapse across case",
			text: `9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b and 9F2C4E1A-0B3D-4F6E-8A7B-1C2D3E4F5A6B`,
			want: []string{"9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b"},
		},
		{
			name: "all-zero sentinel excluded",
			text: `00000000-0000-0000-0000-000000000000`,
			want: []string{},
		},
		{
			name: "near-zero sentinel excluded",
			text: `00000000-0000-0000-0000-000000000001`,
			want: []string{},
		},
		{
			name: "sentinel mixed with real id",
			text: `00000000-0000-0000-0000-000000000000 then abcd1234-5678-90ab-cdef-1234567890ab`,
			want: []string{"abcd1234-5678-90ab-cdef-1234567890ab"},
		},
		{
			name: "no identifiers",
			text: `<html><body>nothing to see</body></html>`,
			want: []string{},
		},
		{
			name: "query-parameter link",
			text: `<a href="?dataset=11111111-2222-3333-4444-555555555555">more</a>`,
			want: []string{"11111111-2222-3333-4444-555555555555"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identifiers(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Identifiers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentifiersPreserveFirstSeenOrder(t *testing.T) {
	text := `first bbbbbbbb-1111-2222-3333-444444444444 ` +
		`then aaaaaaaa-1111-2222-3333-444444444444 ` +
		`and bbbbbbbb-1111-2222-3333-444444444444 again`

	got := Identifiers(text)
	want := []string{
		"bbbbbbbb-1111-2222-3333-444444444444",
		"aaaaaaaa-1111-2222-3333-444444444444",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Identifiers() order = %v, want %v", got, want)
	}
}

func TestIdentifiersIdempotent(t *testing.T) {
	text := `9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b junk ABCD1234-5678-90AB-CDEF-1234567890AB`

	first := Identifiers(text)
	second := Identifiers(strings.Join(first, " "))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-extraction changed result: first %v, second %v", first, second)
	}
}

func TestSentinel(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"00000000-0000-0000-0000-000000000000", true},
		{"00000000-0000-0000-0000-000000000001", true},
		{"00000000-0000-0000-ffff-ffffffffffff", true},
		{"00000000-0000-0001-0000-000000000000", false},
		{"9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b", false},
	}
	for _, tt := range tests {
		if got := Sentinel(tt.id); got != tt.want {
			t.Errorf("Sentinel(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestEntries(t *testing.T) {
	t.Run("nested result envelope", func(t *testing.T) {
		raw := `{"result":{"results":[
			{"id":"9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b","title":"Trade Volumes","title_ar":"أحجام التجارة"},
			{"id":"abcd1234-5678-90ab-cdef-1234567890ab","name":"Port Traffic"}
		]}}`

		entries := Entries(raw)
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].ExternalID != "9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b" {
			t.Errorf("unexpected first id %q", entries[0].ExternalID)
		}
		if entries[0].Title != "Trade Volumes" {
			t.Errorf("unexpected title %q", entries[0].Title)
		}
		if entries[0].TitleAr != "أحجام التجارة" {
			t.Errorf("unexpected arabic title %q", entries[0].TitleAr)
		}
		if entries[1].Title != "Port Traffic" {
			t.Errorf("name fallback not applied, got %q", entries[1].Title)
		}
	})

	t.Run("flat data envelope", func(t *testing.T) {
		raw := `{"data":[{"uuid":"11111111-2222-3333-4444-555555555555","label":"Energy"}]}`

		entries := Entries(raw)
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if entries[0].ExternalID != "11111111-2222-3333-4444-555555555555" {
			t.Errorf("unexpected id %q", entries[0].ExternalID)
		}
	})

	t.Run("sentinel entries dropped", func(t *testing.T) {
		raw := `{"results":[{"id":"00000000-0000-0000-0000-000000000000","title":"ghost"}]}`

		if entries := Entries(raw); len(entries) != 0 {
			t.Errorf("expected no entries, got %v", entries)
		}
	})

	t.Run("malformed json yields nothing", func(t *testing.T) {
		if entries := Entries(`{"results": [`); entries != nil {
			t.Errorf("expected nil entries, got %v", entries)
		}
	})

	t.Run("entries without id skipped", func(t *testing.T) {
		raw := `{"items":[{"title":"no id here"},{"id":"9f2c4e1a-0b3d-4f6e-8a7b-1c2d3e4f5a6b"}]}`

		entries := Entries(raw)
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
	})
}
