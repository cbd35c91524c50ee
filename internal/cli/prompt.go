package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/promptchain-backend/internal/domain"
	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/pkg/pointers"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Create, version and activate prompts",
}

func init() {
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the root version of a new prompt family",
		Run:   runPromptCreate,
	}
	create.Flags().StringP("project", "p", "", "Project key or id (required)")
	create.Flags().StringP("key", "k", "", "Prompt key (required)")
	create.Flags().String("name", "", "Display name (required)")
	create.Flags().String("description", "", "Description")
	create.Flags().String("system", "", "System text")
	create.Flags().String("user", "", "User text (required)")
	create.MarkFlagRequired("project")
	create.MarkFlagRequired("key")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("user")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a version",
		Args:  cobra.ExactArgs(1),
		Run:   runPromptGet,
	}
	get.Flags().Bool("family", false, "Include the root and every family member")

	current := &cobra.Command{
		Use:   "current [id]",
		Short: "Resolve the active version of a family",
		Args:  cobra.MaximumNArgs(1),
		Run:   runPromptCurrent,
	}
	current.Flags().StringP("project", "p", "", "Project key or id, with --key")
	current.Flags().StringP("key", "k", "", "Key of any family member, with --project")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit the active version, or append a new one with --new-version",
		Args:  cobra.ExactArgs(1),
		Run:   runPromptUpdate,
	}
	update.Flags().String("name", "", "New display name")
	update.Flags().String("description", "", "New description")
	update.Flags().String("system", "", "New system text")
	update.Flags().String("user", "", "New user text")
	update.Flags().Bool("new-version", false, "Append a new active version instead of editing in place")
	update.Flags().Bool("branch", false, "Allow a new version to descend from an inactive member")

	activate := &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a version the active member of its family",
		Args:  cobra.ExactArgs(1),
		Run:   runPromptActivate,
	}

	history := &cobra.Command{
		Use:   "history <id>",
		Short: "List a family's versions and audit trail",
		Args:  cobra.ExactArgs(1),
		Run:   runPromptHistory,
	}
	history.Flags().IntP("limit", "l", 0, "Max audit entries")

	list := &cobra.Command{
		Use:   "list",
		Short: "List prompt versions in a project",
		Run:   runPromptList,
	}
	list.Flags().StringP("project", "p", "", "Project key or id (required)")
	list.Flags().IntP("limit", "l", 0, "Max results")
	list.Flags().Int("offset", 0, "Results to skip")
	list.MarkFlagRequired("project")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search prompt versions by key, name or text",
		Args:  cobra.ExactArgs(1),
		Run:   runPromptSearch,
	}
	search.Flags().StringP("project", "p", "", "Project key or id (required)")
	search.Flags().IntP("limit", "l", 0, "Max results")
	search.MarkFlagRequired("project")

	count := &cobra.Command{
		Use:   "count",
		Short: "Count prompt versions in a project",
		Run:   runPromptCount,
	}
	count.Flags().StringP("project", "p", "", "Project key or id (required)")
	count.MarkFlagRequired("project")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete every version in the family of <id>",
		Args:  cobra.ExactArgs(1),
		Run:   runPromptDelete,
	}

	promptCmd.AddCommand(create, get, current, update, activate, history, list, search, count, del)
	RootCmd.AddCommand(promptCmd)
}

func runPromptCreate(cmd *cobra.Command, args []string) {
	projectRef, _ := cmd.Flags().GetString("project")
	key, _ := cmd.Flags().GetString("key")
	name, _ := cmd.Flags().GetString("name")
	desc, _ := cmd.Flags().GetString("description")
	system, _ := cmd.Flags().GetString("system")
	user, _ := cmd.Flags().GetString("user")

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	p, err := resolveProject(ctx, a, projectRef)
	if err != nil {
		exitErr("get project", err)
		return
	}
	res, err := a.Prompts.Create(ctx, domainagg.CreatePromptInput{
		ProjectID:   p.ID,
		Key:         key,
		Name:        name,
		Description: desc,
		SystemText:  system,
		UserText:    user,
	})
	if err != nil {
		exitErr("create prompt", err)
		return
	}
	printWarnings(cmd, res.Warnings)
	printVersion(cmd, res.Version)
}

func runPromptGet(cmd *cobra.Command, args []string) {
	id := parseID(args[0])
	withFamily, _ := cmd.Flags().GetBool("family")

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	if !withFamily {
		v, err := a.Prompts.Get(ctx, id)
		if err != nil {
			exitErr("get prompt", err)
			return
		}
		printVersion(cmd, v)
		return
	}
	vf, err := a.Prompts.GetWithFamily(ctx, id)
	if err != nil {
		exitErr("get prompt family", err)
		return
	}
	if !isText() {
		printJSON(cmd.OutOrStdout(), vf)
		return
	}
	printVersion(cmd, vf.Version)
	fmt.Fprintf(cmd.OutOrStdout(), "family of %s:\n", vf.Root.Key)
	printVersions(cmd, vf.Family)
}

func runPromptCurrent(cmd *cobra.Command, args []string) {
	projectRef, _ := cmd.Flags().GetString("project")
	key, _ := cmd.Flags().GetString("key")
	if len(args) == 0 && (strings.TrimSpace(projectRef) == "" || strings.TrimSpace(key) == "") {
		exitErr("current", fmt.Errorf("pass an id or both --project and --key"))
		return
	}

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	var v *domain.PromptVersion
	if len(args) == 1 {
		v, err = a.Prompts.ResolveCurrent(ctx, parseID(args[0]))
	} else {
		p, perr := resolveProject(ctx, a, projectRef)
		if perr != nil {
			exitErr("get project", perr)
			return
		}
		v, err = a.Prompts.GetCurrentByKey(ctx, p.ID, key)
	}
	if err != nil {
		exitErr("resolve current", err)
		return
	}
	printVersion(cmd, v)
}

func runPromptUpdate(cmd *cobra.Command, args []string) {
	id := parseID(args[0])
	newVersion, _ := cmd.Flags().GetBool("new-version")
	branch, _ := cmd.Flags().GetBool("branch")
	patch := patchFromFlags(cmd)

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	res, err := a.Prompts.Update(ctx, domainagg.UpdatePromptInput{
		ID:                 id,
		Patch:              patch,
		CreateNewVersion:   newVersion,
		BranchFromInactive: branch,
	})
	if err != nil {
		exitErr("update prompt", err)
		return
	}
	printWarnings(cmd, res.Warnings)
	printVersion(cmd, res.Version)
}

// patchFromFlags sets only the fields whose flags were passed, so an
// explicit empty value still reaches validation.
func patchFromFlags(cmd *cobra.Command) domain.PromptPatch {
	var p domain.PromptPatch
	fields := map[string]**string{
		"name":        &p.Name,
		"description": &p.Description,
		"system":      &p.SystemText,
		"user":        &p.UserText,
	}
	for flag, dst := range fields {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, _ := cmd.Flags().GetString(flag)
		*dst = pointers.Ptr(v)
	}
	return p
}

func runPromptActivate(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	res, err := a.Prompts.SetActive(ctx, domainagg.SetActiveInput{ID: id})
	if err != nil {
		exitErr("activate prompt", err)
		return
	}
	printWarnings(cmd, res.Warnings)
	printVersion(cmd, res.Version)
}

func runPromptHistory(cmd *cobra.Command, args []string) {
	id := parseID(args[0])
	limit, _ := cmd.Flags().GetInt("limit")

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	h, err := a.Prompts.History(ctx, id, limit)
	if err != nil {
		exitErr("prompt history", err)
		return
	}
	if !isText() {
		printJSON(cmd.OutOrStdout(), h)
		return
	}
	out := cmd.OutOrStdout()
	printVersions(cmd, h.Versions)
	for _, act := range h.Activity {
		fmt.Fprintf(out, "%s  %-22s %s\n", act.CreatedAt.Format("2006-01-02 15:04:05"), act.Action, act.SubjectID)
	}
}

func runPromptList(cmd *cobra.Command, args []string) {
	projectRef, _ := cmd.Flags().GetString("project")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	p, err := resolveProject(ctx, a, projectRef)
	if err != nil {
		exitErr("get project", err)
		return
	}
	versions, err := a.Prompts.ListProjectPrompts(ctx, p.ID, limit, offset)
	if err != nil {
		exitErr("list prompts", err)
		return
	}
	printVersions(cmd, versions)
}

func runPromptSearch(cmd *cobra.Command, args []string) {
	projectRef, _ := cmd.Flags().GetString("project")
	limit, _ := cmd.Flags().GetInt("limit")

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	p, err := resolveProject(ctx, a, projectRef)
	if err != nil {
		exitErr("get project", err)
		return
	}
	versions, err := a.Prompts.Search(ctx, p.ID, args[0], limit)
	if err != nil {
		exitErr("search prompts", err)
		return
	}
	printVersions(cmd, versions)
}

func runPromptCount(cmd *cobra.Command, args []string) {
	projectRef, _ := cmd.Flags().GetString("project")

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	p, err := resolveProject(ctx, a, projectRef)
	if err != nil {
		exitErr("get project", err)
		return
	}
	n, err := a.Prompts.CountProjectPrompts(ctx, p.ID)
	if err != nil {
		exitErr("count prompts", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
}

func runPromptDelete(cmd *cobra.Command, args []string) {
	id := parseID(args[0])

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	res, err := a.Prompts.DeleteFamily(ctx, domainagg.DeleteFamilyInput{ID: id})
	if err != nil {
		exitErr("delete prompt family", err)
		return
	}
	printWarnings(cmd, res.Warnings)
	if !isText() {
		printJSON(cmd.OutOrStdout(), res)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d versions of family %s\n", len(res.DeletedIDs), res.FamilyRootID)
}
