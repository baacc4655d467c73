// Command celplay serves the CEL playground and offers its operations on the
// command line.
package main

import "os"

func main() {
	os.Exit(Main())
}
