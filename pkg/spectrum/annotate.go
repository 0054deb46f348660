package spectrum

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Annotation is a marker placed on a peak at (X MHz, Y dB).
type Annotation struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
}

// TableAnnotation lists every peak as compact text, anchored to the top-right
// corner of the plot. It stays readable when the individual markers overlap.
type TableAnnotation struct {
	Text string `json:"text"`
}

// Annotate builds one marker per peak index plus the summary table. Peak
// display disabled or an empty list yields no annotations at all. Indices
// outside the sample are skipped.
func Annotate(sample Sample, s DisplaySettings, peaks []int) ([]Annotation, *TableAnnotation) {
	if !s.ShowPeaks || len(peaks) == 0 {
		return nil, nil
	}
	n := sample.Len()
	center, span := s.Span()

	annotations := make([]Annotation, 0, len(peaks))
	for _, p := range peaks {
		if p < 0 || p >= n {
			continue
		}
		freq := BinFrequency(p, n, center, span) / 1e6
		power := sample.FFT[p]
		annotations = append(annotations, Annotation{
			X:     freq,
			Y:     power,
			Text:  fmt.Sprintf("%.2f MHz\n%.2f dB", freq, power),
			Color: ColorString(PeakColor(power)),
		})
	}
	if len(annotations) == 0 {
		return nil, nil
	}
	return annotations, &TableAnnotation{Text: peakTable(annotations)}
}

func peakTable(annotations []Annotation) string {
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, a := range annotations {
		table.Append([]string{
			fmt.Sprintf("Peak %d", i+1),
			fmt.Sprintf("%.2f MHz", a.X),
			fmt.Sprintf("%.2f dB", a.Y),
		})
	}
	table.Render()
	return sb.String()
}
