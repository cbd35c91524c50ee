package prompt

import (
	"strings"
	"testing"
)

func str(s string) *string { return &s }

func TestPatchValidate(t *testing.T) {
	if err := (Patch{}).Validate(); err != nil {
		t.Fatalf("empty patch should validate: %v", err)
	}
	bad := []Patch{
		{Name: str("  ")},
		{Name: str(strings.Repeat("n", MaxNameLength+1))},
		{Description: str(strings.Repeat("d", MaxDescriptionLength+1))},
		{UserText: str("\n\t")},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestPatchDiffAndApply(t *testing.T) {
	cur := &PromptVersion{Name: "Greeting", Description: "d", SystemText: "sys", UserText: "hi"}
	p := Patch{
		Name:       str(" Greeting "),
		SystemText: str("sys2"),
		UserText:   str("hello"),
	}
	updates, changed := p.Diff(cur)
	if len(changed) != 2 || changed[0] != "system_text" || changed[1] != "user_text" {
		t.Fatalf("unexpected changed: %v", changed)
	}
	if _, ok := updates["name"]; ok {
		t.Fatalf("trimmed name equal to current should not be updated")
	}
	if updates["user_text"] != "hello" {
		t.Fatalf("unexpected updates: %v", updates)
	}

	next := p.Apply(*cur)
	if next.Name != "Greeting" || next.SystemText != "sys2" || next.UserText != "hello" || next.Description != "d" {
		t.Fatalf("unexpected apply: %+v", next)
	}
	if cur.UserText != "hi" {
		t.Fatalf("Apply must not mutate the source")
	}
	if !(Patch{}).Empty() || p.Empty() {
		t.Fatalf("Empty mismatch")
	}
}
