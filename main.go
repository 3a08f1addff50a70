package main

import "github.com/frahmantamala/sangha-registry/cmd"

func main() {
	cmd.Execute()
}
