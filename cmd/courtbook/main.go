package main

import "github.com/example/courtbook/cmd"

func main() {
	cmd.Execute()
}
