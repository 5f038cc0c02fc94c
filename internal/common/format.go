package common

import (
	"fmt"
	"strings"
)

// reportWidth is the separator width shared by the report CLIs.
const reportWidth = 80

// PrintHeader prints a report title between separator lines.
func PrintHeader(title string) {
	fmt.Println("\n" + strings.Repeat("=", reportWidth))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", reportWidth))
}

// PrintRule prints a closing separator line.
func PrintRule() {
	fmt.Println(strings.Repeat("=", reportWidth))
}

// PrintFooter prints a summary line between separators.
func PrintFooter(message string) {
	fmt.Println("\n" + strings.Repeat("=", reportWidth))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", reportWidth) + "\n")
}

// BoxPrefix returns the box-drawing prefix for list items.
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}
