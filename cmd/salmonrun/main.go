package main

import "salmonrun-notifier/internal/cli"

func main() {
	cli.Execute()
}
