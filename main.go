package main

import "github.com/open-feature/flagmigrate/cmd"

func main() {
	cmd.Execute()
}
