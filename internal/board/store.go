package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alecgard/planner/internal/apperr"
	"github.com/alecgard/planner/internal/isotime"
	"github.com/alecgard/planner/internal/storage"
	"github.com/alecgard/planner/internal/validate"
	"github.com/google/uuid"
)

// TeamDirectory is the read side of the team store that boards depend on.
type TeamDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// UserDirectory is the read side of the user store that tasks depend on.
type UserDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Options configures a Store.
type Options struct {
	// RequireBoardID disables the fallback to the latest open board when a
	// task is added without a board id.
	RequireBoardID bool
	// ExportDir is where Export writes reports. Defaults to "out".
	ExportDir string
}

// Store owns the boards and tasks collections. Both are guarded by the same
// mutex so closing a board and adding a task to it never interleave.
type Store struct {
	mu     sync.Mutex
	boards *storage.Collection[Board]
	tasks  *storage.Collection[Task]
	teams  TeamDirectory
	users  UserDirectory
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewStore creates a board store persisting to backend.
func NewStore(backend storage.Backend, teams TeamDirectory, users UserDirectory, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "out"
	}
	return &Store{
		boards: storage.NewCollection[Board](backend, storage.Boards),
		tasks:  storage.NewCollection[Task](backend, storage.Tasks),
		teams:  teams,
		users:  users,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Create persists a new OPEN board for an existing team. Board names are
// unique within a team only.
func (s *Store) Create(ctx context.Context, in CreateBoardInput) (*Board, error) {
	name, err := validate.Title(in.Name, "board name")
	if err != nil {
		return nil, err
	}
	description, err := validate.Description(in.Description, "description")
	if err != nil {
		return nil, err
	}
	teamID, err := validate.Required(in.TeamID, "team id")
	if err != nil {
		return nil, err
	}
	ok, err := s.teams.Exists(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("creating board: %w", err)
	}
	if !ok {
		return nil, apperr.Validation("team id does not exist")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	boards, err := s.boards.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating board: %w", err)
	}
	for _, b := range boards {
		if b.TeamID == teamID && b.Name == name {
			return nil, apperr.Duplicate("board name must be unique within the team")
		}
	}

	created := s.now().UTC()
	if in.CreationTime != nil && !in.CreationTime.IsZero() {
		created = in.CreationTime.UTC()
	}
	b := Board{
		ID:           s.newID(),
		Name:         name,
		Description:  description,
		TeamID:       teamID,
		Status:       BoardOpen,
		CreationTime: isotime.New(created),
	}
	if err := s.boards.Save(ctx, append(boards, b)); err != nil {
		return nil, fmt.Errorf("creating board: %w", err)
	}

	s.logger.Info("board created", "board_id", b.ID, "team_id", teamID, "name", name)
	return &b, nil
}

// Close moves a board to CLOSED. It fails if the board is already closed or
// has any task that is not COMPLETE; a board without tasks always closes.
func (s *Store) Close(ctx context.Context, id string) (*Board, error) {
	id, err := validate.Required(id, "board id")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	boards, err := s.boards.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("closing board: %w", err)
	}
	i := indexOf(boards, id)
	if i < 0 {
		return nil, apperr.NotFound("board not found")
	}
	if boards[i].Status == BoardClosed {
		return nil, apperr.Validation("board is already closed")
	}

	tasks, err := s.tasks.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("closing board: %w", err)
	}
	for _, t := range tasks {
		if t.BoardID == id && t.Status != TaskComplete {
			s.logger.Debug("board close rejected", "board_id", id, "task_id", t.ID, "task_status", t.Status.String())
			return nil, apperr.Validation("cannot close board: not all tasks are complete")
		}
	}

	boards[i].Status = BoardClosed
	boards[i].EndTime = isotime.Ptr(s.now().UTC())
	if err := s.boards.Save(ctx, boards); err != nil {
		return nil, fmt.Errorf("closing board: %w", err)
	}

	s.logger.Info("board closed", "board_id", id)
	return &boards[i], nil
}

// GetByID returns the board with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*Board, error) {
	id, err := validate.Required(id, "board id")
	if err != nil {
		return nil, err
	}
	boards, err := s.boards.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting board by id: %w", err)
	}
	i := indexOf(boards, id)
	if i < 0 {
		return nil, apperr.NotFound("board not found")
	}
	return &boards[i], nil
}

// ListByTeam returns the boards of a team in creation order.
func (s *Store) ListByTeam(ctx context.Context, teamID string) ([]*Board, error) {
	teamID, err := validate.Required(teamID, "team id")
	if err != nil {
		return nil, err
	}
	boards, err := s.boards.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	out := make([]*Board, 0)
	for i := range boards {
		if boards[i].TeamID == teamID {
			out = append(out, &boards[i])
		}
	}
	return out, nil
}

// Tasks returns the tasks of an existing board in creation order.
func (s *Store) Tasks(ctx context.Context, boardID string) ([]*Task, error) {
	if _, err := s.GetByID(ctx, boardID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	out := make([]*Task, 0)
	for i := range tasks {
		if tasks[i].BoardID == boardID {
			out = append(out, &tasks[i])
		}
	}
	return out, nil
}

// AddTask adds an OPEN task to an open board. Without a board id the most
// recently created open board in the whole system is used, unless the store
// was built with RequireBoardID.
func (s *Store) AddTask(ctx context.Context, in AddTaskInput) (*Task, error) {
	title, err := validate.Title(in.Title, "task title")
	if err != nil {
		return nil, err
	}
	description, err := validate.Description(in.Description, "description")
	if err != nil {
		return nil, err
	}
	userID, err := validate.Required(in.UserID, "user id")
	if err != nil {
		return nil, err
	}
	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("adding task: %w", err)
	}
	if !ok {
		return nil, apperr.Validation("user %s does not exist", userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	boards, err := s.boards.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("adding task: %w", err)
	}
	board, err := s.resolveBoard(boards, in.BoardID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("adding task: %w", err)
	}
	for _, t := range tasks {
		if t.BoardID == board.ID && t.Title == title {
			return nil, apperr.Duplicate("task title must be unique within the board")
		}
	}

	created := s.now().UTC()
	if in.CreationTime != nil && !in.CreationTime.IsZero() {
		created = in.CreationTime.UTC()
	}
	t := Task{
		ID:           s.newID(),
		Title:        title,
		Description:  description,
		UserID:       userID,
		BoardID:      board.ID,
		Status:       TaskOpen,
		CreationTime: isotime.New(created),
	}
	if err := s.tasks.Save(ctx, append(tasks, t)); err != nil {
		return nil, fmt.Errorf("adding task: %w", err)
	}

	s.logger.Info("task added", "task_id", t.ID, "board_id", board.ID, "user_id", userID)
	return &t, nil
}

func (s *Store) resolveBoard(boards []Board, boardID string) (*Board, error) {
	if boardID != "" {
		i := indexOf(boards, boardID)
		if i < 0 {
			return nil, apperr.Validation("board %s does not exist", boardID)
		}
		if boards[i].Status != BoardOpen {
			return nil, apperr.Validation("can only add tasks to OPEN boards")
		}
		return &boards[i], nil
	}
	if s.opts.RequireBoardID {
		return nil, apperr.Validation("board id is required")
	}
	for i := len(boards) - 1; i >= 0; i-- {
		if boards[i].Status == BoardOpen {
			return &boards[i], nil
		}
	}
	return nil, apperr.Validation("no open boards available to add a task")
}

// UpdateTaskStatus overwrites a task's status. Any transition between the
// three statuses is allowed while the task's board is open; tasks on a closed
// board are frozen.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status string) (*Task, error) {
	id, err := validate.Required(id, "task id")
	if err != nil {
		return nil, err
	}
	st, err := ParseTaskStatus(status)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, err := s.tasks.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating task status: %w", err)
	}
	i := -1
	for j := range tasks {
		if tasks[j].ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		return nil, apperr.NotFound("task not found")
	}

	boards, err := s.boards.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating task status: %w", err)
	}
	if b := indexOf(boards, tasks[i].BoardID); b >= 0 && boards[b].Status == BoardClosed {
		return nil, apperr.Validation("board is closed")
	}

	if tasks[i].Status == st {
		return &tasks[i], nil
	}
	tasks[i].Status = st
	if err := s.tasks.Save(ctx, tasks); err != nil {
		return nil, fmt.Errorf("updating task status: %w", err)
	}

	s.logger.Info("task status updated", "task_id", id, "status", st.String())
	return &tasks[i], nil
}

// snapshot loads a board and its tasks under the store lock.
func (s *Store) snapshot(ctx context.Context, id string) (Board, []Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	boards, err := s.boards.Load(ctx)
	if err != nil {
		return Board{}, nil, fmt.Errorf("exporting board: %w", err)
	}
	i := indexOf(boards, id)
	if i < 0 {
		return Board{}, nil, apperr.NotFound("board not found")
	}
	tasks, err := s.tasks.Load(ctx)
	if err != nil {
		return Board{}, nil, fmt.Errorf("exporting board: %w", err)
	}
	out := make([]Task, 0)
	for _, t := range tasks {
		if t.BoardID == id {
			out = append(out, t)
		}
	}
	return boards[i], out, nil
}

func indexOf(boards []Board, id string) int {
	for i := range boards {
		if boards[i].ID == id {
			return i
		}
	}
	return -1
}
