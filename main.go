package main

import "github.com/vladshiryaev/cx/cmd"

func main() {
	cmd.Execute()
}
