// File: reservo/main.go
package main

import "reservo/cli"

func main() {
	cli.Execute()
}
