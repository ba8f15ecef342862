package main

import "github.com/searchpin/searchpin/cmd/searchpin/cli"

func main() {
	cli.Execute()
}
