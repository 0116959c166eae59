package main

import "github.com/srp-packages/build-tools/cmd"

func main() {
	cmd.Execute()
}
