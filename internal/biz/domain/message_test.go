package domain

import "testing"

func TestLogicalUnit_Accessors(t *testing.T) {
	unit := &LogicalUnit{
		Parts: []*Submission{
			{SenderID: "u1", Text: "  red hoodie ", Media: []MediaRef{{Kind: "image", Key: "img_1"}}},
			{SenderID: "u1", Media: []MediaRef{{Kind: "image", Key: "img_2"}}, Budget: "50€"},
			{SenderID: "u1", Text: "size M", Budget: "30"},
		},
	}

	if unit.First() != unit.Parts[0] {
		t.Error("Expected first part to be canonical")
	}
	if unit.SenderID() != "u1" {
		t.Errorf("Expected sender u1, got %q", unit.SenderID())
	}
	if got := unit.Text(); got != "red hoodie\nsize M" {
		t.Errorf("Unexpected text %q", got)
	}
	media := unit.Media()
	if len(media) != 2 || media[0].Key != "img_1" || media[1].Key != "img_2" {
		t.Errorf("Unexpected media %+v", media)
	}
	if unit.Budget() != "50€" {
		t.Errorf("Expected first budget, got %q", unit.Budget())
	}
}

func TestLogicalUnit_Empty(t *testing.T) {
	unit := &LogicalUnit{}
	if unit.First() != nil || unit.SenderID() != "" {
		t.Error("Empty unit must have no first part")
	}
}

func TestMediaRef_Identity(t *testing.T) {
	if (MediaRef{Key: "k"}).Identity() != "k" {
		t.Error("Expected key fallback")
	}
	if (MediaRef{Key: "k", ContentID: "sha"}).Identity() != "sha" {
		t.Error("Expected content id preferred")
	}
}
