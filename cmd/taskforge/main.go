// Command taskforge decomposes tasks, runs them through worker agents and
// synthesizes the results.
package main

func main() {
	Execute()
}
