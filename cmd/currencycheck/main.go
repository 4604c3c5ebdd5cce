package main

import "currencycheck/internal/cli"

func main() {
	cli.Execute()
}
