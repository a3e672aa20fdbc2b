package main

import "github.com/rushteam/outrank/internal/cli"

// version, commit, date 由 -ldflags 在构建时注入。
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.Execute(version, commit, date)
}
