package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theirongolddev/worklog/internal/cli"
	"github.com/theirongolddev/worklog/internal/config"
	"github.com/theirongolddev/worklog/internal/store"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects; the selected one is attached to new records",
	RunE:  runProjectsList,
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <id> <name...>",
	Short: "Add or rename a project",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runProjectsAdd,
}

var projectsSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Attach new records to a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsSelect,
}

var projectsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Stop attaching records to any project",
	RunE:  runProjectsClear,
}

func init() {
	projectsCmd.AddCommand(projectsAddCmd, projectsSelectCmd, projectsClearCmd)
	rootCmd.AddCommand(projectsCmd)
}

func openStore() (*store.Store, error) {
	return store.Open(config.DBPath())
}

func runProjectsList(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	projects, err := st.Projects(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("\n  No projects. Add one with `worklog projects add <id> <name>`.")
		return nil
	}

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		mark := ""
		if p.Selected {
			mark = "●"
		}
		rows = append(rows, []string{mark, p.ID, truncate(p.Name, 40)})
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("PROJECTS"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"", "ID", "Name"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}

func runProjectsAdd(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if id == "" || name == "" {
		return errors.New("project id and name must not be empty")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.AddProject(cmd.Context(), id, name); err != nil {
		return fmt.Errorf("adding project: %w", err)
	}
	fmt.Println("  " + cli.RenderOutcome(true, fmt.Sprintf("project %s saved", id)))
	return nil
}

func runProjectsSelect(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	err = st.SelectProject(cmd.Context(), args[0])
	if errors.Is(err, store.ErrProjectNotFound) {
		return fmt.Errorf("no project with id %q (see `worklog projects`)", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Println("  " + cli.RenderOutcome(true, fmt.Sprintf("new records will be attached to %s", args[0])))
	return nil
}

func runProjectsClear(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.ClearSelection(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("  " + cli.RenderOutcome(true, "project selection cleared"))
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
