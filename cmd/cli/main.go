package main

import "github.com/heapql/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
