package main

import "github.com/mcoot/tlschat/internal/cli"

func main() {
	cli.Execute()
}
