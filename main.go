package main

import "chatwidget/cmd"

func main() {
	cmd.Execute()
}
