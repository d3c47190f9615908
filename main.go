package main

import "github.com/salexandr0s/scry/internal/cli"

func main() {
	cli.Execute()
}
