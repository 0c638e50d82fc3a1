package navigation

import "strings"

// ArriveInstruction is shown as the next instruction while on the final step
const ArriveInstruction = "Arrive at destination"

const (
	streetSeparator  = " on "
	maxStreetLength  = 25
	streetTruncateTo = 22
	maxNextLength    = 30
	nextTruncateTo   = 27
	ellipsis         = "..."
)

// SplitInstruction separates a step instruction into its maneuver and "on <street>" context.
// Only the first " on " splits. Streets longer than 25 characters are shortened.
func SplitInstruction(instruction string) (maneuver, street string) {
	parts := strings.SplitN(instruction, streetSeparator, 2)
	maneuver = parts[0]

	if len(parts) > 1 {
		name := parts[1]
		if runeLen(name) > maxStreetLength {
			name = truncateRunes(name, streetTruncateTo) + ellipsis
		}
		street = "on " + name
	}

	return maneuver, street
}

// NextInstruction shortens an upcoming instruction to its essential part
func NextInstruction(instruction string) string {
	switch {
	case strings.Contains(instruction, streetSeparator):
		maneuver, _ := SplitInstruction(instruction)
		return maneuver
	case runeLen(instruction) > maxNextLength:
		return truncateRunes(instruction, nextTruncateTo) + ellipsis
	default:
		return instruction
	}
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
