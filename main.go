// The main package for the showcase crawler executable.
package main

import "github.com/Potti1234/ETHGlobalProjectAnalysis/cmd"

func main() {
	cmd.Execute()
}
