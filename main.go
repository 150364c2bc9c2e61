package main

import "github.com/mescam/misra/cmd"

func main() {
	cmd.Execute()
}
