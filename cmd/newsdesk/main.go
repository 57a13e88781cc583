package main

import "github.com/jmcleod/newsdesk/cmd/newsdesk/cmd"

func main() {
	cmd.Execute()
}
