package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/domain/project"
)

const (
	MaxKeyLength         = 80
	MaxNameLength        = 100
	MaxDescriptionLength = 500
)

var (
	ErrInvalidKey     = errors.New("invalid prompt key")
	ErrInvalidVersion = errors.New("invalid prompt version")
)

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// PromptVersion is one immutable step in a prompt family. A family is every
// row reachable from a root (ParentID == nil) through ParentID links.
type PromptVersion struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_prompt_version_project_key,priority:1;index:idx_prompt_version_project_active,priority:1" json:"project_id"`

	Key         string `gorm:"column:key;type:varchar(100);not null;uniqueIndex:idx_prompt_version_project_key,priority:2" json:"key"`
	Name        string `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Description string `gorm:"column:description;type:varchar(500)" json:"description"`
	SystemText  string `gorm:"column:system_text;type:text" json:"system_text"`
	UserText    string `gorm:"column:user_text;type:text;not null" json:"user_text"`

	Version  int        `gorm:"column:version;not null;check:chk_prompt_version_positive,version > 0" json:"version"`
	ParentID *uuid.UUID `gorm:"type:uuid;column:parent_id;index:idx_prompt_version_parent" json:"parent_id,omitempty"`
	// No DB default: gorm skips zero values for defaulted columns, which would
	// turn an explicit false into true.
	IsActive bool `gorm:"column:is_active;not null;index:idx_prompt_version_project_active,priority:2" json:"is_active"`

	CreatedBy *uuid.UUID `gorm:"type:uuid;column:created_by" json:"created_by,omitempty"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid;column:updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`

	// Schema-only associations: they give migrations the foreign keys and are
	// never preloaded.
	Project *project.Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Parent  *PromptVersion   `gorm:"foreignKey:ParentID;references:ID" json:"-"`
}

func (PromptVersion) TableName() string { return "prompt_version" }

func (v *PromptVersion) IsRoot() bool {
	return v != nil && v.ParentID == nil
}

func NormalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidKey)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key longer than %d characters", ErrInvalidKey, MaxKeyLength)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q must be lowercase letters, digits, '-' or '_'", ErrInvalidKey, key)
	}
	return nil
}

// VersionKey derives the slug for a non-root version. attempt > 1 is used when
// the plain form is already taken, which happens when a historical version is
// re-activated and extended.
func VersionKey(rootKey string, version, attempt int) string {
	k := fmt.Sprintf("%s-v%d", rootKey, version)
	if attempt > 1 {
		k = fmt.Sprintf("%s-%d", k, attempt)
	}
	return k
}

// ValidateSuccessor checks the ordering rule between a parent and the version
// number proposed for its child.
func ValidateSuccessor(parent *PromptVersion, version int) error {
	if version <= 0 {
		return fmt.Errorf("%w: version must be positive, got %d", ErrInvalidVersion, version)
	}
	if parent == nil {
		if version != 1 {
			return fmt.Errorf("%w: root must be version 1, got %d", ErrInvalidVersion, version)
		}
		return nil
	}
	if version != parent.Version+1 {
		return fmt.Errorf("%w: child of v%d must be v%d, got %d", ErrInvalidVersion, parent.Version, parent.Version+1, version)
	}
	return nil
}

func SortByVersion(vs []*PromptVersion) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Version != vs[j].Version {
			return vs[i].Version < vs[j].Version
		}
		return vs[i].CreatedAt.Before(vs[j].CreatedAt)
	})
}

func ActiveMembers(vs []*PromptVersion) []*PromptVersion {
	out := make([]*PromptVersion, 0, 1)
	for _, v := range vs {
		if v != nil && v.IsActive {
			out = append(out, v)
		}
	}
	return out
}

func IDs(vs []*PromptVersion) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(vs))
	for _, v := range vs {
		if v != nil {
			out = append(out, v.ID)
		}
	}
	return out
}

func FindByID(vs []*PromptVersion, id uuid.UUID) *PromptVersion {
	for _, v := range vs {
		if v != nil && v.ID == id {
			return v
		}
	}
	return nil
}
