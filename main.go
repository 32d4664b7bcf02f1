package main

import "pybun/src/cmd"

func main() {
	cmd.Execute()
}
