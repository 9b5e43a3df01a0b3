package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecgard/planner/internal/apperr"
	"github.com/alecgard/planner/internal/board"
	"github.com/alecgard/planner/internal/storage"
	"github.com/alecgard/planner/internal/team"
	"github.com/alecgard/planner/internal/user"
	"github.com/spf13/cobra"
)

var demoReset bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through users, teams, boards and tasks with sample data",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().BoolVar(&demoReset, "reset", false, "clear users, teams, boards and tasks first")
	rootCmd.AddCommand(demoCmd)
}

var demoUsers = []user.CreateUserInput{
	{Name: "john_doe", DisplayName: "John Doe"},
	{Name: "jane_smith", DisplayName: "Jane Smith"},
	{Name: "bob_wilson", DisplayName: "Bob Wilson"},
	{Name: "alice_johnson", DisplayName: "Alice Johnson"},
}

var demoTasks = []struct {
	title, description, status string
}{
	{"Implement_User_API", "Build REST API endpoints for user management", "COMPLETE"},
	{"Write_Unit_Tests", "Create comprehensive unit tests for API", "COMPLETE"},
	{"API_Documentation", "Write comprehensive API documentation", "IN_PROGRESS"},
	{"Performance_Testing", "Conduct performance and load testing", "OPEN"},
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if demoReset {
		if err := storage.Reset(ctx, a.backend, storage.AllCollections...); err != nil {
			return err
		}
		slog.Info("demo data reset")
	}

	existing, err := a.users.List(ctx)
	if err != nil {
		return fmt.Errorf("checking existing users: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("data already exists, skipping demo; rerun with --reset")
		return nil
	}

	fmt.Println("=== Users ===")
	userIDs := make([]string, 0, len(demoUsers))
	for _, in := range demoUsers {
		u, err := a.users.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("creating user %q: %w", in.Name, err)
		}
		userIDs = append(userIDs, u.ID)
		fmt.Printf("Created user: %s (%s...)\n", u.Name, short(u.ID))
	}
	updated := "John Doe (Updated)"
	if _, err := a.users.Update(ctx, userIDs[0], user.UpdateUserInput{DisplayName: &updated}); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	users, err := a.users.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("  - %s (%s)\n", u.Name, u.DisplayName)
	}

	fmt.Println("\n=== Teams ===")
	dev, err := a.teams.Create(ctx, team.CreateTeamInput{Name: "dev_team", Description: "Development Team", Admin: userIDs[0]})
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	qa, err := a.teams.Create(ctx, team.CreateTeamInput{Name: "qa_team", Description: "Quality Assurance Team", Admin: userIDs[1]})
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	fmt.Printf("Created team: %s (%s...)\n", dev.Name, short(dev.ID))
	fmt.Printf("Created team: %s (%s...)\n", qa.Name, short(qa.ID))

	if _, err := a.teams.AddMembers(ctx, dev.ID, userIDs[1:3]); err != nil {
		return fmt.Errorf("adding members: %w", err)
	}
	members, err := a.teams.Members(ctx, dev.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Members of %s:\n", dev.Name)
	for _, u := range members {
		fmt.Printf("  - %s (%s)\n", u.Name, u.DisplayName)
	}

	fmt.Println("\n=== Boards & Tasks ===")
	sprint, err := a.boards.Create(ctx, board.CreateBoardInput{
		Name: "Sprint_1", Description: "First development sprint with user stories", TeamID: dev.ID,
	})
	if err != nil {
		return fmt.Errorf("creating board: %w", err)
	}
	qaBoard, err := a.boards.Create(ctx, board.CreateBoardInput{
		Name: "Testing_Board", Description: "QA testing and bug tracking board", TeamID: dev.ID,
	})
	if err != nil {
		return fmt.Errorf("creating board: %w", err)
	}
	fmt.Printf("Created board: %s (%s...)\n", sprint.Name, short(sprint.ID))
	fmt.Printf("Created board: %s (%s...)\n", qaBoard.Name, short(qaBoard.ID))

	taskIDs := make([]string, 0, len(demoTasks))
	for i, dt := range demoTasks {
		t, err := a.boards.AddTask(ctx, board.AddTaskInput{
			Title: dt.title, Description: dt.description, UserID: userIDs[i%len(userIDs)], BoardID: sprint.ID,
		})
		if err != nil {
			return fmt.Errorf("adding task %q: %w", dt.title, err)
		}
		taskIDs = append(taskIDs, t.ID)
		fmt.Printf("Created task: %s (%s...)\n", t.Title, short(t.ID))
	}
	for i, dt := range demoTasks {
		if _, err := a.boards.UpdateTaskStatus(ctx, taskIDs[i], dt.status); err != nil {
			return fmt.Errorf("updating task status: %w", err)
		}
		fmt.Printf("Updated task %s... to %s\n", short(taskIDs[i]), dt.status)
	}

	// Sprint_1 still has unfinished work.
	if _, err := a.boards.Close(ctx, sprint.ID); err != nil {
		if !errors.Is(err, apperr.ErrValidation) {
			return err
		}
		fmt.Printf("Close rejected: %v\n", err)
	}

	res, err := a.boards.Export(ctx, sprint.ID)
	if err != nil {
		return fmt.Errorf("exporting board: %w", err)
	}
	fmt.Printf("Board exported to: %s\n", res.Path)

	for _, id := range taskIDs {
		if _, err := a.boards.UpdateTaskStatus(ctx, id, board.TaskComplete.String()); err != nil {
			return fmt.Errorf("completing task: %w", err)
		}
	}
	closed, err := a.boards.Close(ctx, sprint.ID)
	if err != nil {
		return fmt.Errorf("closing board: %w", err)
	}
	fmt.Printf("Closed board %s at %s\n", closed.Name, closed.EndTime.Format("2006-01-02 15:04:05"))

	res, err = a.boards.Export(ctx, sprint.ID)
	if err != nil {
		return fmt.Errorf("exporting board: %w", err)
	}

	fmt.Printf("\n=== Demo Complete ===\n")
	fmt.Printf("Users:   %d\n", len(userIDs))
	fmt.Printf("Teams:   2\n")
	fmt.Printf("Boards:  2 (%s closed)\n", sprint.Name)
	fmt.Printf("Tasks:   %d complete\n", res.Counts.Complete)
	fmt.Printf("Report:  %s\n", res.Path)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  planner serve\n")
	fmt.Printf("  curl http://localhost:%d/api/v1/teams/%s/boards\n", a.cfg.Server.Port, dev.ID)

	return nil
}
