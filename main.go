// Command eventwatch watches venue listings for a tracked person.
package main

import "github.com/JakeFAU/eventwatch/cmd"

func main() {
	cmd.Execute()
}
