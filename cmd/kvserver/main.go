/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/leishu-qiu/kvlined/cmd/kvserver/cmd"
)

func main() {
	cmd.Execute()
}
