package metrics

import "strconv"

func portLabel(port uint16) string {
	return strconv.Itoa(int(port))
}

func segmentTypeLabel(t int) string {
	return strconv.Itoa(t)
}
