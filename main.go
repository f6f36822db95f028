package main

import "github.com/zfogg/nearby/cli/internal/cmd"

func main() {
	cmd.Execute()
}
