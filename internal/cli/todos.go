package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/idilsaglam/kanban/internal/gesture"
	"github.com/idilsaglam/kanban/internal/model"
	"github.com/idilsaglam/kanban/internal/notify"
	"github.com/idilsaglam/kanban/internal/reconcile"
	"github.com/idilsaglam/kanban/internal/store/board"
	"github.com/idilsaglam/kanban/internal/tui"
	"github.com/idilsaglam/kanban/internal/ui"
)

func (a *app) runBoard(cmd *cobra.Command, _ []string) error {
	ctrl, rec, err := a.controller(cmd.Context())
	if err != nil {
		return err
	}
	if err := tui.Run(ctrl, rec); err != nil {
		return failf("board: %v", err)
	}
	return nil
}

// load fetches the board and reports whether the fetch failed. The board is
// still usable on failure: it holds the seed todos.
func (a *app) load(ctx context.Context) (*reconcile.Controller, *notify.Recorder, error) {
	ctrl, rec, err := a.controller(ctx)
	if err != nil {
		return nil, nil, err
	}
	ctrl.LoadAll()
	ctrl.Wait()
	return ctrl, rec, nil
}

// loadForUpdate is load for commands that change todos: acting on the sample
// board would send made-up ids to the API.
func (a *app) loadForUpdate(ctx context.Context) (*reconcile.Controller, *notify.Recorder, error) {
	ctrl, rec, err := a.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := ctrl.Snapshot().LoadErr; err != nil {
		return nil, nil, failf("load: %v", err)
	}
	return ctrl, rec, nil
}

// settled waits for in-flight calls and turns warnings or errors raised
// since mark into a failure.
func settled(ctrl *reconcile.Controller, rec *notify.Recorder, mark int) error {
	ctrl.Wait()
	for _, n := range rec.All()[mark:] {
		if n.Level != notify.Success {
			return failf("%s", n.Message)
		}
	}
	return nil
}

func (a *app) lsCmd() *cobra.Command {
	var (
		lane    string
		asJSON  bool
		noFrame bool
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List todos by lane",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			var only model.Status
			if lane != "" {
				s, ok := model.ParseStatus(lane)
				if !ok {
					return usagef("ls: unknown lane %q (want pending, inProgress or completed)", lane)
				}
				only = s
			}
			ctrl, _, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			snap := ctrl.Snapshot()

			if asJSON {
				lanes := snap.Lanes
				if only != "" {
					lanes = filterLanes(lanes, only)
				}
				b, err := sonic.ConfigStd.MarshalIndent(lanes, "", "  ")
				if err != nil {
					return failf("ls: %v", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			} else {
				w, _ := ui.TermSize()
				lines := ui.BoardLines(snap.Lanes, ui.ListOptions{Lane: only, Width: w - 14})
				lines = append(lines, "", ui.C(ui.Current().Muted, "Tip: move with `board mv <id> <lane>`"))
				if noFrame {
					fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
				} else {
					ui.Panel(lines)
				}
			}
			if snap.LoadErr != nil {
				return failf("load: %v (showing the built-in sample board)", snap.LoadErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lane, "lane", "", "only show one lane")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print lanes as JSON")
	cmd.Flags().BoolVar(&noFrame, "plain", false, "print without a frame")
	return cmd
}

func filterLanes(lanes []model.Lane, s model.Status) []model.Lane {
	for _, l := range lanes {
		if l.ID == s {
			return []model.Lane{l}
		}
	}
	return nil
}

func (a *app) addCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Add a todo to the pending lane",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, rec, err := a.controller(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctrl.Add(strings.Join(args, " "), desc); err != nil {
				if errors.Is(err, model.ErrEmptyTitle) {
					return usagef("add: empty title")
				}
				return failf("add: %v", err)
			}
			if err := settled(ctrl, rec, 0); err != nil {
				return err
			}
			// The board was empty, so the new todo is the only one.
			for _, l := range ctrl.Snapshot().Lanes {
				for _, t := range l.Todos {
					ui.OK(fmt.Sprintf("added #%s to %s", t.ID, l.Title))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "todo description")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "edit <id> <title...>",
		Short: "Change a todo's title and description",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, rec, err := a.loadForUpdate(cmd.Context())
			if err != nil {
				return err
			}
			id := args[0]
			current, ok := ctrl.Snapshot(), false
			for _, l := range current.Lanes {
				for _, t := range l.Todos {
					if t.ID == id {
						ok = true
						if !cmd.Flags().Changed("description") {
							desc = t.Description
						}
					}
				}
			}
			if !ok {
				return notFound(id)
			}
			mark := len(rec.All())
			if err := ctrl.Edit(id, strings.Join(args[1:], " "), desc); err != nil {
				if errors.Is(err, model.ErrEmptyTitle) {
					return usagef("edit: empty title")
				}
				return failf("edit: %v", err)
			}
			if err := settled(ctrl, rec, mark); err != nil {
				return err
			}
			ui.OK("updated #" + id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "new description (kept when omitted)")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete todos",
		Args:    usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, rec, err := a.loadForUpdate(cmd.Context())
			if err != nil {
				return err
			}
			mark := len(rec.All())
			for _, id := range args {
				if err := ctrl.Delete(id); err != nil {
					if errors.Is(err, board.ErrNotFound) {
						return notFound(id)
					}
					return failf("rm: %v", err)
				}
			}
			if err := settled(ctrl, rec, mark); err != nil {
				return err
			}
			ui.OK("removed #" + strings.Join(args, ", #"))
			return nil
		},
	}
}

func (a *app) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <id> <lane>",
		Short: "Move a todo to another lane",
		Long: `Move a todo to another lane and save its new status.

Lanes: pending (todo), inProgress (doing), completed (done).`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			dest, ok := model.ParseStatus(args[1])
			if !ok {
				return usagef("mv: unknown lane %q (want pending, inProgress or completed)", args[1])
			}
			ctrl, rec, err := a.loadForUpdate(cmd.Context())
			if err != nil {
				return err
			}
			if err := ctrl.DragStart(id); err != nil {
				if errors.Is(err, gesture.ErrUnknownTodo) {
					return notFound(id)
				}
				return failf("mv: %v", err)
			}
			if _, err := ctrl.DragOver(string(dest), gesture.TargetLane); err != nil {
				ctrl.DragCancel()
				return failf("mv: %v", err)
			}
			mark := len(rec.All())
			t, ok := ctrl.DragEnd()
			if !ok {
				return failf("mv: #%s was not moved", id)
			}
			if err := settled(ctrl, rec, mark); err != nil {
				return err
			}
			ui.OK(fmt.Sprintf("moved #%s to %s", t.ID, t.Status.Title()))
			return nil
		},
	}
}

func notFound(id string) error {
	ui.Hint("Hint: run `board ls` to see valid ids")
	return usagef("no todo with id %s", id)
}
