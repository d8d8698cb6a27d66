package main

import "github.com/lab5e/partfunk/pkg/seed"

func main() {
	seed.Run()
}
