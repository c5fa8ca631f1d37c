package main

import "github.com/darmiel/linkgate/cmd"

func main() {
	cmd.Execute()
}
