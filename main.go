package main

import "github.com/agentic-research/jsongraph/cmd"

func main() {
	cmd.Execute()
}
