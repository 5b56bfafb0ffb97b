package plot

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// MaxPoints is the maximum number of points drawn per series of a loss
// chart. Longer series are averaged over equally sized buckets.
const MaxPoints = 2000

// LossChart draws the loss of each update of a training run along with
// its trailing mean
type LossChart struct {
	Losses []float64
	Window int
	Title  string
}

// NewLossChart returns a new LossChart whose trailing mean is taken
// over window updates
func NewLossChart(losses []float64, window int) *LossChart {
	return &LossChart{
		Losses: losses,
		Window: window,
		Title:  "Training Loss",
	}
}

// line builds the chart's line series
func (l *LossChart) line() *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    l.Title,
			Subtitle: fmt.Sprintf("%d updates", len(l.Losses)),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Update"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Huber loss"}),
	)

	raw, steps := downsample(l.Losses, MaxPoints)
	trailing, _ := downsample(trailingMean(l.Losses, l.Window), MaxPoints)

	x := make([]string, len(steps))
	for i, step := range steps {
		x[i] = fmt.Sprint(step)
	}

	line.SetXAxis(x).
		AddSeries("loss", lineData(raw)).
		AddSeries(fmt.Sprintf("trailing mean (%d)", l.Window),
			lineData(trailing))
	return line
}

// Render renders the chart as an HTML page to w
func (l *LossChart) Render(w io.Writer) error {
	page := components.NewPage()
	page.AddCharts(l.line())

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// Save renders the chart as an HTML page to filename
func (l *LossChart) Save(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer f.Close()

	if err := l.Render(f); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return f.Close()
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, len(values))
	for i, v := range values {
		items[i] = opts.LineData{Value: v}
	}
	return items
}

// trailingMean returns the mean of each value and the window-1 values
// preceding it
func trailingMean(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}

	means := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		n := i + 1
		if i >= window {
			sum -= values[i-window]
			n = window
		}
		means[i] = sum / float64(n)
	}
	return means
}

// downsample averages values over at most max equally sized buckets,
// returning the bucket means and the index of the first value of each
// bucket
func downsample(values []float64, max int) ([]float64, []int) {
	if len(values) <= max {
		steps := make([]int, len(values))
		for i := range steps {
			steps[i] = i
		}
		return values, steps
	}

	bucket := (len(values) + max - 1) / max
	var means []float64
	var steps []int
	for start := 0; start < len(values); start += bucket {
		end := start + bucket
		if end > len(values) {
			end = len(values)
		}

		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}
		means = append(means, sum/float64(end-start))
		steps = append(steps, start)
	}
	return means, steps
}
