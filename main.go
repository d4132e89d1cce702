package main

import "github.com/KaramelBytes/hhtab/cmd"

func main() {
	cmd.Execute()
}
