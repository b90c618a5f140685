package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title     = color.New(color.FgCyan, color.Bold)
	Character = color.New(color.FgMagenta, color.Bold)
	Prompt    = color.New(color.FgGreen, color.Bold)
	Target    = color.New(color.FgYellow, color.Underline)
	Filled    = color.New(color.FgGreen, color.Underline)
	Armed     = color.New(color.FgBlack, color.BgYellow)
	Practiced = color.New(color.FgHiBlack)
	Error     = color.New(color.FgRed, color.Bold)
	Success   = color.New(color.FgGreen)
	Info      = color.New(color.FgBlue)
	Warning   = color.New(color.FgYellow)
	Good      = color.New(color.FgHiGreen)
)
