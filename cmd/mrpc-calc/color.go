package main

import (
	"github.com/fatih/color"
)

// Colors are disabled automatically when the output is not a terminal.
var (
	resultColor = color.New(color.FgHiGreen)
	errorColor  = color.New(color.FgHiRed)
)
