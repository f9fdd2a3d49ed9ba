package main

import "github.com/forgecrew/taskloop/cmd"

func main() {
	cmd.Execute()
}
