// Package main provides the entry point for the datakiller CLI.
package main

func main() {
	Execute()
}
