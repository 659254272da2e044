package main

import "github.com/boomtrade/boomtrade/internal/cli"

func main() {
	cli.Execute()
}
