package main

import "blogmusic/cmd"

func main() {
	cmd.Execute()
}
