package main

import "github.com/theirongolddev/qaid/cmd"

func main() {
	cmd.Execute()
}
