// main.go - Application entry point
package main

import "terrain-tiler/cmd"

func main() {
	cmd.Execute()
}
