package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/slotswap-availability/internal/availability"
	"github.com/noah-isme/slotswap-availability/internal/service"
	"github.com/noah-isme/slotswap-availability/pkg/config"
)

// ErrRejected is returned by check when the proposal is not acceptable.
var ErrRejected = errors.New("proposal rejected")

type DaysCmd struct {
	File string `short:"f" required:"" type:"existingfile" help:"JSONC or YAML file of busy ranges."`
	From string `help:"First day to report (YYYY-MM-DD)."`
	To   string `help:"Last day to report (YYYY-MM-DD)."`
}

func (cmd *DaysCmd) Run(ctx *Context) error {
	ranges, err := loadRanges(cmd.File, ctx.Loc)
	if err != nil {
		return err
	}

	for _, key := range availability.FullyBlockedDays(ranges, ctx.Loc).Keys() {
		if cmd.From != "" && key.String() < cmd.From {
			continue
		}
		if cmd.To != "" && key.String() > cmd.To {
			continue
		}
		fmt.Fprintln(ctx.Out, key)
	}
	return nil
}

type WindowCmd struct {
	File  string `short:"f" required:"" type:"existingfile" help:"JSONC or YAML file of busy ranges."`
	Start string `required:"" help:"RFC3339 or local YYYY-MM-DDTHH:MM."`
}

func (cmd *WindowCmd) Run(ctx *Context) error {
	ranges, err := loadRanges(cmd.File, ctx.Loc)
	if err != nil {
		return err
	}
	start, err := service.ParseInstant(cmd.Start, ctx.Loc)
	if err != nil {
		return err
	}

	win, ok := availability.FreeWindowFrom(start, availability.Merge(ranges))
	if !ok {
		fmt.Fprintln(ctx.Out, "no free time left on", availability.DayKeyOf(start, ctx.Loc))
		return nil
	}
	fmt.Fprintf(ctx.Out, "%s -> %s (%s)\n", formatTime(win.Start), formatTime(win.End), win.Duration().Round(time.Minute))
	return nil
}

type CheckCmd struct {
	File        string        `short:"f" required:"" type:"existingfile" help:"JSONC or YAML file of busy ranges."`
	Start       string        `required:"" help:"Proposed start."`
	End         string        `help:"Proposed end; omitted to get a suggestion."`
	MinDuration time.Duration `default:"5m" help:"Shortest acceptable free window."`
	Default     time.Duration `default:"30m" help:"Length suggested when no end is given."`
}

func (cmd *CheckCmd) Run(ctx *Context) error {
	ranges, err := loadRanges(cmd.File, ctx.Loc)
	if err != nil {
		return err
	}
	start, err := service.ParseInstant(cmd.Start, ctx.Loc)
	if err != nil {
		return err
	}
	prop := service.Proposal{Start: start}
	if cmd.End != "" {
		end, err := service.ParseInstant(cmd.End, ctx.Loc)
		if err != nil {
			return err
		}
		prop.End = &end
	}

	policy := service.NewSchedulingPolicy(config.SchedulingConfig{MinDuration: cmd.MinDuration, DefaultDuration: cmd.Default}, ctx.Loc)
	plan := policy.Plan(prop, ranges)

	if plan.Window != nil {
		fmt.Fprintf(ctx.Out, "window: %s -> %s\n", formatTime(plan.Window.Start), formatTime(plan.Window.End))
	}
	if plan.SnappedStart != nil && !plan.SnappedStart.Equal(start) {
		fmt.Fprintf(ctx.Out, "start snapped to %s\n", formatTime(*plan.SnappedStart))
	}
	if plan.SuggestedEnd != nil {
		fmt.Fprintf(ctx.Out, "suggested end: %s\n", formatTime(*plan.SuggestedEnd))
	}
	if plan.Valid {
		fmt.Fprintln(ctx.Out, "ok")
		return nil
	}
	for i, reason := range plan.Reasons {
		fmt.Fprintf(ctx.Out, "%s: %s\n", reason, plan.Messages[i])
	}
	return ErrRejected
}
