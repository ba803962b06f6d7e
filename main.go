package main

import "github.com/theirongolddev/stockcast/cmd"

func main() {
	cmd.Execute()
}
