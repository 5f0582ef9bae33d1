package main

import "github.com/notargets/amrelliptic/cmd"

func main() {
	cmd.Execute()
}
