package main

import (
	"github.com/skyfleet/meshnet/cmd/meshsim/commands"
)

func main() {
	commands.Execute()
}
