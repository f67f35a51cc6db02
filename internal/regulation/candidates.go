package regulation

import (
	"regexp"
	"strings"
)

var numberedAU = regexp.MustCompile(`^(\d+)AU$`)

// CandidatesForZone expands a zoning code into the short, deterministic list
// of codes to try against the regulation index. AU sub-zones map onto the
// generic AU ladder; everything else is looked up directly.
//
//	"AUc" -> [1AU, AU, 2AU, 3AU]
//	"1AU" -> [1AU, AU]
//	"2AU" -> [2AU, AU, 1AU]
//	"UA"  -> [UA]
//	"N"   -> [N]
func CandidatesForZone(zone string) []string {
	z := strings.ToUpper(strings.TrimSpace(zone))
	if z == "" {
		return nil
	}

	if m := numberedAU.FindStringSubmatch(z); m != nil {
		switch m[1] {
		case "1":
			return []string{"1AU", "AU"}
		case "2":
			return []string{"2AU", "AU", "1AU"}
		default:
			return []string{z, "AU", "1AU"}
		}
	}

	if strings.HasPrefix(z, "AU") {
		return []string{"1AU", "AU", "2AU", "3AU"}
	}

	return []string{z}
}
