package stages

import "strconv"

func pageLabel(seq int) string {
	return "page " + strconv.Itoa(seq)
}
