package main

import "sideQuest/commands"

func main() {
	commands.Execute()
}
