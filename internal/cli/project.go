package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/promptchain-backend/internal/app"
	"github.com/yungbote/promptchain-backend/internal/domain"
	"github.com/yungbote/promptchain-backend/internal/services"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

func init() {
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Run:   runProjectCreate,
	}
	create.Flags().StringP("key", "k", "", "Project key (required)")
	create.Flags().String("name", "", "Display name (required)")
	create.Flags().String("description", "", "Description")
	create.MarkFlagRequired("key")
	create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects owned by the actor",
		Run:   runProjectList,
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		Run:   runProjectGet,
	}

	update := &cobra.Command{
		Use:   "update <key>",
		Short: "Rename a project or change its description",
		Args:  cobra.ExactArgs(1),
		Run:   runProjectUpdate,
	}
	update.Flags().String("name", "", "New display name")
	update.Flags().String("description", "", "New description")

	del := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a project and every prompt in it",
		Args:  cobra.ExactArgs(1),
		Run:   runProjectDelete,
	}

	projectCmd.AddCommand(create, list, get, update, del)
	RootCmd.AddCommand(projectCmd)
}

func runProjectCreate(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	name, _ := cmd.Flags().GetString("name")
	desc, _ := cmd.Flags().GetString("description")

	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	owner, _ := parseActor()
	if owner == uuid.Nil {
		owner = uuid.New()
	}
	p, err := a.Projects.Create(ctx, key, name, desc, owner)
	if err != nil {
		exitErr("create project", err)
		return
	}
	printProject(cmd, p)
}

func runProjectList(cmd *cobra.Command, args []string) {
	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	owner, _ := parseActor()
	projects, err := a.Projects.List(ctx, owner)
	if err != nil {
		exitErr("list projects", err)
		return
	}
	if !isText() {
		printJSON(cmd.OutOrStdout(), projects)
		return
	}
	for _, p := range projects {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %s\n", p.ID, p.Key, p.Name)
	}
}

func runProjectGet(cmd *cobra.Command, args []string) {
	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	p, err := resolveProject(ctx, a, args[0])
	if err != nil {
		exitErr("get project", err)
		return
	}
	printProject(cmd, p)
}

func runProjectUpdate(cmd *cobra.Command, args []string) {
	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	p, err := resolveProject(ctx, a, args[0])
	if err != nil {
		exitErr("get project", err)
		return
	}
	in := services.UpdateProjectInput{ID: p.ID}
	if cmd.Flags().Changed("name") {
		v, _ := cmd.Flags().GetString("name")
		in.Name = &v
	}
	if cmd.Flags().Changed("description") {
		v, _ := cmd.Flags().GetString("description")
		in.Description = &v
	}
	p, err = a.Projects.Update(ctx, in)
	if err != nil {
		exitErr("update project", err)
		return
	}
	printProject(cmd, p)
}

func runProjectDelete(cmd *cobra.Command, args []string) {
	a, ctx, err := openApp(cmd)
	if err != nil {
		exitErr("open app", err)
		return
	}
	defer a.Close()

	p, err := resolveProject(ctx, a, args[0])
	if err != nil {
		exitErr("get project", err)
		return
	}
	if err := a.Projects.Delete(ctx, p.ID); err != nil {
		exitErr("delete project", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted project %s\n", p.Key)
}

func printProject(cmd *cobra.Command, p *domain.Project) {
	if !isText() {
		printJSON(cmd.OutOrStdout(), p)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", p.ID, p.Key, p.Name)
}

// resolveProject accepts either a project key or a project UUID.
func resolveProject(ctx context.Context, a *app.App, ref string) (*domain.Project, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return a.Projects.Get(ctx, id)
	}
	return a.Projects.GetByKey(ctx, ref)
}
