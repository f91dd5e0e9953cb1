package main

import "docresearch/cmd"

func main() {
	cmd.Execute()
}
