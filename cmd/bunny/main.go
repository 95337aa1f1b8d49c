package main

import (
	"go.brendoncarroll.net/star"

	"bunnyvm.org/bunny/bunnycmd"
)

func main() {
	star.Main(bunnycmd.Root())
}
