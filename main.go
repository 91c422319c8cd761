package main

import "github.com/Seann-Moser/dojobot/cmd"

func main() {
	cmd.Execute()
}
