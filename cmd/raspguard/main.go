package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zboralski/raspguard/internal/policy"
	"github.com/zboralski/raspguard/internal/ui/colorize"
)

var (
	policyPath  string
	verbose     bool
	concurrency int
	maxFrames   int
	logDir      string
)

var errBlocked = errors.New("command blocked")

func main() {
	rootCmd := &cobra.Command{
		Use:   "raspguard",
		Short: "Gate JVM process creation through a keyword policy",
		Long: `Raspguard intercepts the JDK natives that spawn processes and refuses any
command containing a blacklisted keyword.

Inside a JVM it runs as an agent: when the VM links ProcessImpl.create or
UNIXProcess.forkAndExec, the agent swaps in a trampoline that decodes the
command, checks it against the policy, and either forwards the call untouched
or returns the native's own failure value with a stack trace in the log.

This tool exercises the same code outside a JVM.

Examples:
  raspguard check -- curl http://example.com     # Evaluate one command
  raspguard keywords --policy rasp.yaml          # Show the effective keyword set
  raspguard simulate "ls -la" "wget http://x"    # Run commands through both trampolines`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&policyPath, "policy", "p", "", "policy YAML (default: built-in keywords)")

	checkCmd := &cobra.Command{
		Use:   "check -- <command...>",
		Short: "Evaluate a command against the policy; exit 1 when blocked",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}

	keywordsCmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the effective keyword set",
		Args:  cobra.NoArgs,
		RunE:  runKeywords,
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate <command>...",
		Short: "Attach the agent to a simulated JVM and run commands through both natives",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSimulate,
	}
	simulateCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "concurrent calls")
	simulateCmd.Flags().IntVarP(&maxFrames, "frames", "f", 0, "max stack frames logged per block (default 64)")
	simulateCmd.Flags().StringVar(&logDir, "logdir", os.TempDir(), "directory for the agent log file")
	simulateCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "mirror agent log lines on stderr")

	rootCmd.AddCommand(checkCmd, keywordsCmd, simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadEvaluator() (*policy.Evaluator, error) {
	if policyPath == "" {
		return policy.New(policy.Default())
	}
	cfg, err := policy.Load(policyPath)
	if err != nil {
		return nil, err
	}
	return policy.New(cfg)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ev, err := loadEvaluator()
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	kw, blocked := ev.Match(text)

	line := colorize.Decision(blocked) + " " + colorize.Command(text)
	if blocked {
		line += "  " + colorize.Detail("keyword=") + colorize.Keyword(kw)
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)

	if blocked {
		cmd.SilenceErrors = true
		return errBlocked
	}
	return nil
}

func runKeywords(cmd *cobra.Command, args []string) error {
	ev, err := loadEvaluator()
	if err != nil {
		return err
	}
	cfg := ev.Config()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, colorize.Header(fmt.Sprintf("match_mode=%s case_sensitive=%t", cfg.MatchMode, cfg.CaseSensitive)))
	for _, kw := range ev.Keywords() {
		fmt.Fprintln(out, kw)
	}
	return nil
}
