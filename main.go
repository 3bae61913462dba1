package main

import "github.com/n3hifriends/oolshik-backend-sub000/cmd"

func main() {
	cmd.Execute()
}
