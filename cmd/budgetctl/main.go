package main

import (
	_ "time/tzdata"

	"budgetcontrol/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	cli.Execute()
}
