package cart

import "strconv"

// BadgeLabel is the header badge text for a total quantity.
func BadgeLabel(total int) string {
	switch {
	case total <= 0:
		return ""
	case total > 9:
		return "9+"
	default:
		return strconv.Itoa(total)
	}
}
