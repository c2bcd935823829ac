package ui

import (
	"fmt"

	"github.com/idilsaglam/kanban/internal/model"
)

// ListOptions tune BoardLines.
type ListOptions struct {
	// Lane restricts output to one lane when set.
	Lane model.Status
	// Width caps title width; zero means no cap.
	Width int
}

// BoardLines renders lanes as panel lines: a header with counts and a
// completion bar, then each lane with its todos.
func BoardLines(lanes []model.Lane, opt ListOptions) []string {
	t := Current()
	total, done := 0, 0
	counts := map[model.Status]int{}
	for _, l := range lanes {
		counts[l.ID] = len(l.Todos)
		total += len(l.Todos)
		if l.ID == model.StatusCompleted {
			done += len(l.Todos)
		}
	}

	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d  %s %d",
		C(t.Title, "Board"),
		C(t.Pending, t.SymUnchecked), counts[model.StatusPending],
		C(t.Accent, t.BoxActive), counts[model.StatusInProgress],
		C(t.Success, t.SymDone), counts[model.StatusCompleted],
		C(t.Accent, "Total"), total,
	)
	lines := []string{header, C(t.Muted, ProgressBar(done, total, 28)), ""}

	first := true
	for _, l := range lanes {
		if opt.Lane != "" && l.ID != opt.Lane {
			continue
		}
		if !first {
			lines = append(lines, "")
		}
		first = false
		lines = append(lines, C(t.LaneColor(l.ID), fmt.Sprintf("%s (%d)", l.Title, len(l.Todos))))
		if len(l.Todos) == 0 {
			lines = append(lines, C(t.Muted, "(none)"))
			continue
		}
		for _, td := range l.Todos {
			lines = append(lines, todoLine(t, td, opt.Width))
			if td.Description != "" {
				lines = append(lines, "      "+C(t.Muted, Truncate(td.Description, opt.Width)))
			}
		}
	}
	return lines
}

func todoLine(t Theme, td model.Todo, width int) string {
	title := td.Title
	if width > 0 {
		title = Truncate(title, width)
	}
	return fmt.Sprintf("%s %s %s",
		C(dim, fmt.Sprintf("%4s", "#"+td.ID)), C(t.LaneColor(td.Status), t.Box(td.Status)), title)
}
