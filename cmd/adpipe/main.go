package main

import "github.com/YuminosukeSato/adpipe/internal/cli"

func main() {
	cli.Execute()
}
