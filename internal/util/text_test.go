package util

import (
	"reflect"
	"testing"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Acme Corp", "acme corp"},
		{"strips punctuation", "J.D.E. Peet's, N.V.", "j d e peet s n v"},
		{"collapses whitespace", "  Foo   Bar  ", "foo bar"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanName(tt.in); got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDeduplicateAndSortByFrequency(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			"frequency wins",
			[]string{"b", "a", "b", "c", "b", "a"},
			[]string{"b", "a", "c"},
		},
		{
			"ties keep first seen",
			[]string{"x", "y", "z"},
			[]string{"x", "y", "z"},
		},
		{
			"empty",
			nil,
			[]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeduplicateAndSortByFrequency(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModalString(t *testing.T) {
	if got := ModalString([]string{"JDE Peets", "Jde Peets", "JDE Peets"}); got != "JDE Peets" {
		t.Errorf("got %q", got)
	}
	if got := ModalString(nil); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
