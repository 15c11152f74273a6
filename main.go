package main

import "lumina-backend/cmd"

func main() {
	cmd.Run()
}
