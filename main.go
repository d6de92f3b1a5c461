package main

import "github.com/roasbeef/patchq/commands"

func main() {
	commands.Execute()
}
