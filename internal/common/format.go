package common

import (
	"fmt"
	"strings"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println()
	PrintSeparator("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println()
	PrintSeparator("=", width)
	fmt.Println(message)
	PrintSeparator("=", width)
	fmt.Println()
}

// BoxPrefix returns the box-drawing prefix for a row in a list
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└─ "
	}
	return "├─ "
}

// Truncate shortens an identifier for table output
func Truncate(id string, n int) string {
	if id == "" {
		return "none"
	}
	if len(id) > n {
		return id[:n] + "..."
	}
	return id
}
