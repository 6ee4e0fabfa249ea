package main

import "github.com/example/slotchaser/cmd"

func main() {
	cmd.Execute()
}
