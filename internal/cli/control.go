package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/mode_orchestrator/internal/facade"
	"github.com/R3E-Network/mode_orchestrator/internal/httpapi"
	"github.com/R3E-Network/mode_orchestrator/internal/httputil"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
)

func newClient(opts *globalOptions) *httputil.Client {
	return httputil.NewClient(httputil.ClientConfig{BaseURL: opts.addr, Token: opts.token})
}

func newStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the current mode and transition state",
		Args:    cobra.NoArgs,
		GroupID: "control",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newClient(opts).View(cmd.Context())
			if err != nil {
				return err
			}
			return printView(cmd.OutOrStdout(), v, opts.jsonOutput)
		},
	}
}

type switchFlags struct {
	animation time.Duration
	noCleanup bool
}

func (f *switchFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.animation, "animation", 0, "Animation wait before the new mode is committed (server default when unset)")
	cmd.Flags().BoolVar(&f.noCleanup, "no-cleanup", false, "Skip cleanup handlers")
}

func (f *switchFlags) request(cmd *cobra.Command, target string) httpapi.SwitchRequest {
	req := httpapi.SwitchRequest{Mode: target}
	if cmd.Flags().Changed("animation") {
		ms := f.animation.Milliseconds()
		req.AnimationMS = &ms
	}
	if f.noCleanup {
		run := false
		req.RunCleanup = &run
	}
	return req
}

func newSwitchCommand(opts *globalOptions) *cobra.Command {
	flags := &switchFlags{}

	cmd := &cobra.Command{
		Use:       "switch <mode>",
		Short:     "Switch to standard or game mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{mode.ModeStandard.String(), mode.ModeGame.String()},
		GroupID:   "control",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := mode.ParseAppMode(args[0])
			if err != nil {
				return err
			}
			req := flags.request(cmd, target.String())
			return runTransition(cmd, opts, "switching to "+target.String(), func(ctx context.Context, c *httputil.Client) (facade.View, error) {
				return c.Switch(ctx, req)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newToggleCommand(opts *globalOptions) *cobra.Command {
	flags := &switchFlags{}

	cmd := &cobra.Command{
		Use:     "toggle",
		Short:   "Switch to the other mode",
		Args:    cobra.NoArgs,
		GroupID: "control",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := flags.request(cmd, "")
			return runTransition(cmd, opts, "toggling mode", func(ctx context.Context, c *httputil.Client) (facade.View, error) {
				return c.Toggle(ctx, req)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runTransition(cmd *cobra.Command, opts *globalOptions, label string, call func(context.Context, *httputil.Client) (facade.View, error)) error {
	client := newClient(opts)

	if opts.jsonOutput {
		v, err := call(cmd.Context(), client)
		if err != nil {
			return err
		}
		return printView(cmd.OutOrStdout(), v, true)
	}

	spinner := NewSpinner(cmd.ErrOrStderr(), label)
	spinner.Start()
	v, err := call(cmd.Context(), client)
	if err != nil {
		if httputil.IsConflict(err) {
			spinner.Fail("another transition is in progress")
		} else {
			spinner.Fail(err.Error())
		}
		return err
	}
	spinner.Success(fmt.Sprintf("now in %s mode", colorMode(v.CurrentMode)))
	return nil
}
