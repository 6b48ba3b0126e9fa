package main

import "github.com/pfrederiksen/telefication/internal/cli"

func main() {
	cli.Execute()
}
