// cx [OPTIONS]... [[NAME] [ARG]...]
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vladshiryaev/cx/internal/builder"
	"github.com/vladshiryaev/cx/internal/msg"
	"github.com/vladshiryaev/cx/internal/profilesync"
	"github.com/vladshiryaev/cx/internal/sanity"
)

var (
	flagBuild       bool
	flagForce       bool
	flagClean       bool
	flagColor       = NewEnumValue("auto", map[string]string{"auto": "", "never": "", "always": ""})
	flagQuiet       bool
	flagVerbose     bool
	flagSanity      bool
	flagKeepDeps    bool
	flagConfig      string
	flagSyncProfile string
)

var rootCmd = &cobra.Command{
	Use:                "cx [OPTIONS]... [[NAME] [ARG]...]",
	Short:              "Zero-configuration C/C++ build-and-run driver",
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: false,
	Run:                doRoot,
}

func init() {
	flags := rootCmd.Flags()
	flags.SetInterspersed(false)
	flags.BoolVarP(&flagBuild, "build", "b", false, "build without running, even if NAME is given")
	flags.BoolVarP(&flagForce, "force", "f", false, "rebuild every object, library and executable regardless of sidecars")
	flags.BoolVar(&flagClean, "clean", false, "remove the selected configuration's .cx.cache/<config> directories under NAME (or cwd) and exit")
	flags.Var(&flagColor, "color", "color mode, one of "+flagColor.HelpString())
	rootCmd.RegisterFlagCompletionFunc("color", flagColor.CompletionFunc())
	flags.BoolVarP(&flagQuiet, "quiet", "q", false, "suppress info-level output")
	flags.BoolVar(&flagVerbose, "verbose", false, "enable trace-level output")
	flags.BoolVar(&flagSanity, "sanity", false, "run the internal self-test suite and exit")
	flags.MarkHidden("sanity")
	flags.BoolVar(&flagKeepDeps, "keep-deps", false, "retain .d files produced by -MMD")
	flags.StringVar(&flagConfig, "config", "", "configuration id (default: $CX_CONFIG, else \"default\")")
	flags.StringVar(&flagSyncProfile, "sync-profile", "", "clone/pull a shared cx.top from a git URL before building")
}

func resolveConfigID() string {
	if flagConfig != "" {
		return flagConfig
	}
	if env := os.Getenv("CX_CONFIG"); env != "" {
		return env
	}
	return "default"
}

func doRoot(cmd *cobra.Command, args []string) {
	switch flagColor.Value() {
	case "never":
		msg.SetColor(msg.ColorNever)
	case "always":
		msg.SetColor(msg.ColorAlways)
	default:
		msg.SetColor(msg.ColorAuto)
	}
	switch {
	case flagVerbose:
		msg.SetLevel(msg.LevelDebug)
	case flagQuiet:
		msg.SetLevel(msg.LevelError)
	default:
		msg.SetLevel(msg.LevelInfo)
	}
	defer msg.Flush()

	if flagSanity {
		if err := sanity.Run(); err != nil {
			msg.Fatal("sanity check failed: %v", err)
		}
		msg.Info("all sanity checks passed")
		return
	}

	target := ""
	runArgs := args
	if len(args) > 0 {
		target = args[0]
		runArgs = args[1:]
	}

	if flagClean {
		if err := builder.Clean(target, resolveConfigID()); err != nil {
			msg.Fatal("clean: %v", err)
		}
		return
	}

	if flagSyncProfile != "" {
		root := target
		if root == "" {
			root = "."
		}
		if err := profilesync.Sync(flagSyncProfile, root); err != nil {
			msg.Fatal("sync-profile: %v", err)
		}
	}

	ctx := builder.NewContext(runtime.NumCPU())
	ctx.ConfigID = resolveConfigID()
	msg.Trace("build session %s, config %q", ctx.SessionID, ctx.ConfigID)

	options := builder.Options{
		Force:       flagForce,
		KeepDeps:    flagKeepDeps,
		SkipRunning: flagBuild,
		RunArgs:     runArgs,
	}
	b := builder.NewMaster(ctx, options)
	if !b.Build(target) {
		msg.Flush()
		os.Exit(1)
	}
}

// Execute is the module entry point's sole call into package cmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
