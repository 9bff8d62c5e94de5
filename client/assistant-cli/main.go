package main

import "AIAssistant/client/assistant-cli/cmd"

func main() {
	cmd.Execute()
}
