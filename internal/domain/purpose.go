package domain

import "fmt"

type Purpose int

const (
	PurposeWork Purpose = iota + 1
	PurposeSchool
	PurposeShop
	PurposeOther
)

var purposeNames = map[Purpose]string{
	PurposeWork:   "work",
	PurposeSchool: "school",
	PurposeShop:   "shop",
	PurposeOther:  "other",
}

func (p Purpose) String() string {
	if s, ok := purposeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("purpose(%d)", int(p))
}

// ParsePurpose maps a seed-file purpose name to a Purpose.
func ParsePurpose(s string) (Purpose, error) {
	for p, name := range purposeNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("parse purpose: unknown purpose %q", s)
}

// Purposes lists every purpose in a stable order.
func Purposes() []Purpose {
	return []Purpose{PurposeWork, PurposeSchool, PurposeShop, PurposeOther}
}
