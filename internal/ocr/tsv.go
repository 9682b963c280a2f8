package ocr

import (
	"strconv"
	"strings"
)

// tsvColumns is the column count of tesseract's TSV output:
// level page_num block_num par_num line_num word_num left top width height conf text
const tsvColumns = 12

const tsvWordLevel = "5"

type lineKey struct {
	page, block, par, line int
}

// parseTSV groups word rows into lines in the order tesseract emits them and
// returns the mean word confidence in 0..1.
func parseTSV(out string) ([]Line, float32) {
	var (
		lines   []Line
		index   = map[lineKey]int{}
		sum     float64
		counted int
	)
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.SplitN(strings.TrimRight(ln, "\r"), "\t", tsvColumns)
		if len(cols) < tsvColumns || cols[0] != tsvWordLevel {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		key := lineKey{atoi(cols[1]), atoi(cols[2]), atoi(cols[3]), atoi(cols[4])}
		top := atoi(cols[7])

		pos, ok := index[key]
		if !ok {
			pos = len(lines)
			index[key] = pos
			lines = append(lines, Line{Index: pos, Top: top, Page: key.page})
		}
		l := &lines[pos]
		if l.Text == "" {
			l.Text = word
		} else {
			l.Text += " " + word
		}
		if top < l.Top {
			l.Top = top
		}

		if c, err := strconv.ParseFloat(cols[10], 64); err == nil && c >= 0 {
			sum += c
			counted++
		}
	}
	if counted == 0 {
		return lines, 0
	}
	return lines, float32(sum / float64(counted) / 100.0)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
