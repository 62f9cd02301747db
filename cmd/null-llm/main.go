// Command null-llm talks to any configured LLM provider from the terminal.
package main

func main() {
	Execute()
}
