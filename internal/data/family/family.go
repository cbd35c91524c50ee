// Package family walks prompt version chains. A family is a root version
// plus every version reachable from it through parent links.
package family

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/promptchain-backend/internal/data/repos"
	types "github.com/yungbote/promptchain-backend/internal/domain"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/domain/prompt"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

// defaultMaxDepth bounds both walks so corrupted data cannot loop forever
// even if the visited sets were bypassed.
const defaultMaxDepth = 10000

// Lineage is a resolved family.
type Lineage struct {
	Root    *types.PromptVersion
	Members []*types.PromptVersion
}

// Sorted returns the members ordered by version ascending.
func (l Lineage) Sorted() []*types.PromptVersion {
	out := append([]*types.PromptVersion(nil), l.Members...)
	prompt.SortByVersion(out)
	return out
}

func (l Lineage) Active() []*types.PromptVersion {
	return prompt.ActiveMembers(l.Members)
}

func (l Lineage) IDs() []uuid.UUID {
	return prompt.IDs(l.Members)
}

func (l Lineage) Member(id uuid.UUID) *types.PromptVersion {
	return prompt.FindByID(l.Members, id)
}

type Traverser struct {
	versions repos.PromptVersionRepo
	log      *logger.Logger
	maxDepth int
}

func NewTraverser(versions repos.PromptVersionRepo, baseLog *logger.Logger) *Traverser {
	return &Traverser{
		versions: versions,
		log:      baseLog.With("component", "FamilyTraverser"),
		maxDepth: defaultMaxDepth,
	}
}

// FindRoot follows parent links upward from id. A dangling parent or a cycle
// ends the walk at the last record that resolved.
func (t *Traverser) FindRoot(dbc dbctx.Context, id uuid.UUID) (*types.PromptVersion, error) {
	const op = "Prompt.Family.FindRoot"
	cur, err := t.versions.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("prompt version not found: %s", id), nil)
	}
	return t.rootFrom(dbc, cur)
}

// RootOf is FindRoot for a record the caller already holds.
func (t *Traverser) RootOf(dbc dbctx.Context, v *types.PromptVersion) (*types.PromptVersion, error) {
	if v == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, "Prompt.Family.FindRoot", "prompt version not found", nil)
	}
	return t.rootFrom(dbc, v)
}

func (t *Traverser) rootFrom(dbc dbctx.Context, cur *types.PromptVersion) (*types.PromptVersion, error) {
	visited := map[uuid.UUID]struct{}{cur.ID: {}}
	for depth := 0; cur.ParentID != nil && depth < t.maxDepth; depth++ {
		parentID := *cur.ParentID
		if _, seen := visited[parentID]; seen {
			t.log.Warn("Cycle in prompt version chain", "child_id", cur.ID, "parent_id", parentID)
			return cur, nil
		}
		parent, err := t.versions.GetByID(dbc, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			t.log.Warn("Dangling parent in prompt version chain", "child_id", cur.ID, "parent_id", parentID)
			return cur, nil
		}
		visited[parentID] = struct{}{}
		cur = parent
	}
	if cur.ParentID != nil {
		t.log.Warn("Prompt version chain exceeds max depth, root walk truncated",
			"stopped_at", cur.ID, "parent_id", *cur.ParentID, "max_depth", t.maxDepth)
	}
	return cur, nil
}

// CollectFamily returns root and all of its descendants, each once, in no
// particular order.
func (t *Traverser) CollectFamily(dbc dbctx.Context, root *types.PromptVersion) ([]*types.PromptVersion, error) {
	if root == nil {
		return nil, nil
	}
	members := []*types.PromptVersion{root}
	visited := map[uuid.UUID]struct{}{root.ID: {}}
	frontier := []uuid.UUID{root.ID}
	for depth := 0; len(frontier) > 0 && depth < t.maxDepth; depth++ {
		children, err := t.versions.ListByParentIDs(dbc, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]uuid.UUID, 0, len(children))
		for _, c := range children {
			if c == nil {
				continue
			}
			if _, seen := visited[c.ID]; seen {
				t.log.Warn("Revisited prompt version during family walk", "id", c.ID, "root_id", root.ID)
				continue
			}
			visited[c.ID] = struct{}{}
			members = append(members, c)
			next = append(next, c.ID)
		}
		frontier = next
	}
	if len(frontier) > 0 {
		t.log.Warn("Prompt family exceeds max depth, descendant walk truncated",
			"root_id", root.ID, "pending", len(frontier), "max_depth", t.maxDepth)
	}
	return members, nil
}

// Family resolves the lineage that contains id.
func (t *Traverser) Family(dbc dbctx.Context, id uuid.UUID) (Lineage, error) {
	root, err := t.FindRoot(dbc, id)
	if err != nil {
		return Lineage{}, err
	}
	members, err := t.CollectFamily(dbc, root)
	if err != nil {
		return Lineage{}, err
	}
	return Lineage{Root: root, Members: members}, nil
}
