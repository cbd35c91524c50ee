package prompt

import (
	"fmt"
	"strings"
)

// Patch holds optional field changes for a prompt version. Nil fields are
// left untouched.
type Patch struct {
	Name        *string
	Description *string
	SystemText  *string
	UserText    *string
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.SystemText == nil && p.UserText == nil
}

func (p Patch) Validate() error {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return fmt.Errorf("name cannot be empty")
		}
		if len(n) > MaxNameLength {
			return fmt.Errorf("name longer than %d characters", MaxNameLength)
		}
	}
	if p.Description != nil && len(*p.Description) > MaxDescriptionLength {
		return fmt.Errorf("description longer than %d characters", MaxDescriptionLength)
	}
	if p.UserText != nil && strings.TrimSpace(*p.UserText) == "" {
		return fmt.Errorf("user_text cannot be empty")
	}
	return nil
}

// Diff returns the column updates that would change cur, plus the changed
// column names in a stable order.
func (p Patch) Diff(cur *PromptVersion) (map[string]interface{}, []string) {
	updates := map[string]interface{}{}
	changed := make([]string, 0, 4)
	set := func(col string, next *string, prev string) {
		if next == nil || *next == prev {
			return
		}
		updates[col] = *next
		changed = append(changed, col)
	}
	name := p.Name
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
	}
	set("name", name, cur.Name)
	set("description", p.Description, cur.Description)
	set("system_text", p.SystemText, cur.SystemText)
	set("user_text", p.UserText, cur.UserText)
	return updates, changed
}

// Apply overlays the patch onto a copy of cur.
func (p Patch) Apply(cur PromptVersion) PromptVersion {
	if p.Name != nil {
		cur.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		cur.Description = *p.Description
	}
	if p.SystemText != nil {
		cur.SystemText = *p.SystemText
	}
	if p.UserText != nil {
		cur.UserText = *p.UserText
	}
	return cur
}
