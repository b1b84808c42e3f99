package main

import "github.com/brizzle/shopagent/cmd/shopagent/cli"

func main() {
	cli.Execute()
}
