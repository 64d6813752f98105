package cli

import (
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/bookineo/bookineo/pkg/subscription"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func formatLimit(limit int) string {
	if limit == subscription.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(limit)
}

func stars(rating int) string {
	if rating <= 0 {
		return "-"
	}
	out := make([]rune, 0, 5)
	for i := 1; i <= 5; i++ {
		if i <= rating {
			out = append(out, '*')
		} else {
			out = append(out, '.')
		}
	}
	return string(out)
}
