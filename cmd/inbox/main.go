package main

import "github.com/nhle/inbox/internal/cli"

func main() {
	cli.Execute()
}
