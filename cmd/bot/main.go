package main

import "alertbot/internal/cli"

func main() {
	cli.Execute()
}
