package main

import "henkbot/cmd"

func main() {
	cmd.Execute()
}
