package main

import "github.com/kozaktomas/facefind/cmd"

func main() {
	cmd.Execute()
}
