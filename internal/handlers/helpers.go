package handlers

import "strconv"

// parseIDParam parses a numeric route parameter into a uint database ID.
func parseIDParam(param string) (uint, error) {
	parsed, err := strconv.ParseUint(param, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
