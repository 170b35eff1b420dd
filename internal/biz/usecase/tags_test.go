package usecase

import (
	"reflect"
	"testing"
)

var testTagTable = []KeywordTag{
	{Keyword: "hoodie", Tag: "hoodie"},
	{Keyword: "felpa", Tag: "hoodie"},
	{Keyword: "sneaker", Tag: "sneakers"},
	{Keyword: "Jacket", Tag: "jacket"},
	{Keyword: "jeans", Tag: "jeans"},
	{Keyword: "bag", Tag: "bag"},
	{Keyword: "hat", Tag: "hat"},
}

func TestTagInferencer_Infer(t *testing.T) {
	inf := NewTagInferencer(testTagTable, 0)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"single keyword", "red hoodie budget 50", []string{"hoodie"}},
		{"case insensitive", "Looking for a JACKET", []string{"jacket"}},
		{"table order", "jeans and a hoodie", []string{"hoodie", "jeans"}},
		{"duplicate tag once", "hoodie or felpa", []string{"hoodie"}},
		{"no match", "something else entirely", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inf.Infer(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Infer(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTagInferencer_Cap(t *testing.T) {
	inf := NewTagInferencer(testTagTable, 3)

	got := inf.Infer("hoodie sneakers jacket jeans bag hat")
	want := []string{"hoodie", "sneakers", "jacket"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	def := NewTagInferencer(testTagTable, 0)
	if got := def.Infer("hoodie sneakers jacket jeans bag hat"); len(got) != DefaultMaxTags {
		t.Errorf("Expected default cap %d, got %d", DefaultMaxTags, len(got))
	}
}

func TestTagInferencer_SkipsBlankRows(t *testing.T) {
	inf := NewTagInferencer([]KeywordTag{{Keyword: " ", Tag: "x"}, {Keyword: "cap", Tag: ""}}, 5)
	if got := inf.Infer("cap x"); got != nil {
		t.Errorf("Expected no tags, got %v", got)
	}
}
