package runtime

import "time"

// Location resolves an IANA zone name, falling back to the process local zone.
func Location(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}
