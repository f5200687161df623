package main

import "github.com/theirongolddev/worklog/cmd"

func main() {
	cmd.Execute()
}
