package main

import "github.com/DominicWuest/ecosystem-ci/cmd"

func main() {
	cmd.Execute()
}
