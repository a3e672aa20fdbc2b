// Package cli 定义 outrank 命令行的 Cobra 命令树。
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// NewRootCmd 返回根命令，每次调用都是新的命令树，便于测试。
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "outrank",
		Short: "Rank retrieved candidates with ELECTRE III outranking",
		Long: `outrank ranks candidates (restaurants, venues, ...) returned by a similarity
search. Review signals are turned into per-criterion scores and the candidates
are ordered by net outranking credibility.

Candidates are read from one or more JSON catalog snapshots:

  outrank rank --catalog hcm.json --top-k 5 "pho near ben thanh"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRankCmd(), newVersionCmd())
	return root
}

// Execute 运行根命令。
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "outrank %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
