package main

import "github.com/MeKo-Tech/notely/cmd/notely/cmd"

func main() {
	cmd.Execute()
}
