package main

import "github.com/CrazyForks/waylog-cli/cmd"

func main() {
	cmd.Execute()
}
