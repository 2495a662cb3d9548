package main

import "cppmunge/internal/cli"

func main() {
	cli.Execute()
}
