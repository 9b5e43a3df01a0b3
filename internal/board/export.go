package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/alecgard/planner/internal/apperr"
	"github.com/alecgard/planner/internal/storage"
	"github.com/alecgard/planner/internal/validate"
)

var (
	banner      = strings.Repeat("=", 60)
	summaryRule = strings.Repeat("-", 20)
	detailsRule = strings.Repeat("-", 30)
)

// ExportResult describes a written board report.
type ExportResult struct {
	FileName string       `json:"out_file"`
	Path     string       `json:"-"`
	Counts   StatusCounts `json:"-"`
}

// Export renders a text report of the board and its tasks and writes it to
// the export directory. The file is replaced if it already exists.
func (s *Store) Export(ctx context.Context, id string) (*ExportResult, error) {
	id, err := validate.Required(id, "board id")
	if err != nil {
		return nil, err
	}
	b, tasks, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.opts.ExportDir, 0o755); err != nil {
		return nil, apperr.Storage(err, "creating export directory")
	}
	name := ReportFileName(b)
	path := filepath.Join(s.opts.ExportDir, name)
	report := RenderReport(b, tasks, s.now())
	if err := storage.WriteFileAtomic(path, []byte(report), 0o644); err != nil {
		return nil, apperr.Storage(err, "writing export %s", name)
	}

	counts := Count(tasks)
	s.logger.Info("board exported", "board_id", id, "file", path, "tasks", counts.Total)
	return &ExportResult{FileName: name, Path: path, Counts: counts}, nil
}

// ReportFileName returns board_<name>_<id prefix>.txt, where name keeps only
// letters, numeric characters (including ² and ½), spaces, hyphens and underscores.
func ReportFileName(b Board) string {
	var sb strings.Builder
	for _, r := range b.Name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	prefix := b.ID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("board_%s_%s.txt", strings.TrimRightFunc(sb.String(), unicode.IsSpace), prefix)
}

// RenderReport formats the board report. Lines are joined by "\n" with no
// trailing newline.
func RenderReport(b Board, tasks []Task, generated time.Time) string {
	lines := []string{
		banner,
		"BOARD EXPORT: " + b.Name,
		banner,
		"Description: " + b.Description,
		"Team ID: " + b.TeamID,
		"Status: " + b.Status.String(),
		"Created: " + timestamp(b.CreationTime.Time),
	}
	if b.EndTime != nil {
		lines = append(lines, "Closed: "+timestamp(b.EndTime.Time))
	}

	c := Count(tasks)
	lines = append(lines,
		"",
		"TASK SUMMARY:",
		summaryRule,
		fmt.Sprintf("Total Tasks: %d", c.Total),
		fmt.Sprintf("Open: %d", c.Open),
		fmt.Sprintf("In Progress: %d", c.InProgress),
		fmt.Sprintf("Complete: %d", c.Complete),
		"",
	)

	if len(tasks) == 0 {
		lines = append(lines, "No tasks found for this board.")
	} else {
		lines = append(lines, "TASK DETAILS:", detailsRule)
		for i, t := range tasks {
			lines = append(lines,
				fmt.Sprintf("%d. %s [%s]", i+1, t.Title, t.Status),
				"   ID: "+t.ID,
				"   Description: "+t.Description,
				"   Assigned to: "+t.UserID,
				"   Created: "+timestamp(t.CreationTime.Time),
				"",
			)
		}
	}

	lines = append(lines,
		banner,
		"Export generated on: "+timestamp(generated),
		banner,
	)
	return strings.Join(lines, "\n")
}

// ParseReportCounts reads the TASK SUMMARY block of a rendered report.
func ParseReportCounts(r io.Reader) (StatusCounts, error) {
	fields := map[string]*int{}
	var c StatusCounts
	fields["Total Tasks"] = &c.Total
	fields["Open"] = &c.Open
	fields["In Progress"] = &c.InProgress
	fields["Complete"] = &c.Complete

	sc := bufio.NewScanner(r)
	inSummary := false
	seen := 0
	for sc.Scan() {
		line := sc.Text()
		if line == "TASK SUMMARY:" {
			inSummary = true
			continue
		}
		if !inSummary {
			continue
		}
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		dst, ok := fields[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return StatusCounts{}, fmt.Errorf("parsing %s count: %w", key, err)
		}
		*dst = n
		seen++
	}
	if err := sc.Err(); err != nil {
		return StatusCounts{}, fmt.Errorf("reading report: %w", err)
	}
	if seen != len(fields) {
		return StatusCounts{}, fmt.Errorf("report summary incomplete: found %d of %d counts", seen, len(fields))
	}
	return c, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
