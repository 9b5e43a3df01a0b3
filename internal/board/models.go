package board

import (
	"fmt"
	"strings"

	"github.com/alecgard/planner/internal/apperr"
	"github.com/alecgard/planner/internal/isotime"
)

// BoardStatus is the lifecycle state of a board. The zero value is invalid.
type BoardStatus int

const (
	BoardOpen BoardStatus = iota + 1
	BoardClosed
)

func (s BoardStatus) String() string {
	switch s {
	case BoardOpen:
		return "OPEN"
	case BoardClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("BoardStatus(%d)", int(s))
	}
}

func (s BoardStatus) MarshalText() ([]byte, error) {
	if s != BoardOpen && s != BoardClosed {
		return nil, fmt.Errorf("invalid board status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *BoardStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "OPEN":
		*s = BoardOpen
	case "CLOSED":
		*s = BoardClosed
	default:
		return fmt.Errorf("invalid board status %q", text)
	}
	return nil
}

// TaskStatus is the progress state of a task. Any status may follow any
// other.
type TaskStatus int

const (
	TaskOpen TaskStatus = iota + 1
	TaskInProgress
	TaskComplete
)

// TaskStatuses lists every valid task status in report order.
var TaskStatuses = []TaskStatus{TaskOpen, TaskInProgress, TaskComplete}

func (s TaskStatus) String() string {
	switch s {
	case TaskOpen:
		return "OPEN"
	case TaskInProgress:
		return "IN_PROGRESS"
	case TaskComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

func (s TaskStatus) valid() bool {
	return s >= TaskOpen && s <= TaskComplete
}

func (s TaskStatus) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid task status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *TaskStatus) UnmarshalText(text []byte) error {
	st, err := ParseTaskStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseTaskStatus parses one of OPEN, IN_PROGRESS or COMPLETE. Surrounding
// whitespace is ignored, case is not.
func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, st := range TaskStatuses {
		if strings.TrimSpace(s) == st.String() {
			return st, nil
		}
	}
	return 0, apperr.Validation("status must be one of: OPEN, IN_PROGRESS, COMPLETE")
}

// Board is a team's project board. A closed board never reopens.
type Board struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	TeamID       string        `json:"team_id"`
	Status       BoardStatus   `json:"status"`
	CreationTime isotime.Time  `json:"creation_time"`
	EndTime      *isotime.Time `json:"end_time"`
}

// Task is a unit of work on a board, assigned to one user.
type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	UserID       string       `json:"user_id"`
	BoardID      string       `json:"board_id"`
	Status       TaskStatus   `json:"status"`
	CreationTime isotime.Time `json:"creation_time"`
}

// CreateBoardInput holds the fields required to create a board.
type CreateBoardInput struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	TeamID       string        `json:"team_id"`
	CreationTime *isotime.Time `json:"creation_time,omitempty"`
}

// AddTaskInput holds the fields required to add a task. An empty BoardID
// selects the most recently created open board unless the store requires an
// explicit board.
type AddTaskInput struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	UserID       string        `json:"user_id"`
	BoardID      string        `json:"board_id,omitempty"`
	CreationTime *isotime.Time `json:"creation_time,omitempty"`
}

// StatusCounts is the number of tasks in each status.
type StatusCounts struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Complete   int `json:"complete"`
}

// Count tallies tasks by status.
func Count(tasks []Task) StatusCounts {
	c := StatusCounts{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case TaskOpen:
			c.Open++
		case TaskInProgress:
			c.InProgress++
		case TaskComplete:
			c.Complete++
		}
	}
	return c
}
