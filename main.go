package main

import "github.com/vibast-solutions/ms-go-linkhub/cmd"

func main() {
	cmd.Execute()
}
