package main

import "github.com/i474232898/snowfall-bets/cmd/snowfall-bets/cmd"

func main() {
	cmd.Execute()
}
