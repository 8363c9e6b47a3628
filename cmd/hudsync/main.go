package main

import "github.com/mcoot/ingamehud/internal/cli"

func main() {
	cli.Execute()
}
