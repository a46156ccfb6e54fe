package main

import "palmlens-backend/cmd"

func main() {
	cmd.Run()
}
