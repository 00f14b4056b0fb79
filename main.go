package main

import "github.com/naka-gawa/github-backfill/cmd"

func main() {
	cmd.Execute()
}
