package emails

//go:generate templ generate

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"
)

// Support is the contact block shown at the bottom of every email
type Support struct {
	Email string
	Phone string
}

// Render renders c to a string
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatSAR(amount float64) string {
	if amount == float64(int64(amount)) {
		return fmt.Sprintf("%d ريال سعودي (SAR)", int64(amount))
	}
	return fmt.Sprintf("%.2f ريال سعودي (SAR)", amount)
}

// splitParagraphs breaks free text on blank lines, then each paragraph into its lines
func splitParagraphs(s string) [][]string {
	var out [][]string
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		out = append(out, strings.Split(para, "\n"))
	}
	return out
}
