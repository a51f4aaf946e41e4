package engine

// ProgressFunc receives cumulative progress. It runs on the goroutine doing
// the work.
type ProgressFunc func(done, total int)

// progressSteps bounds how often a ProgressFunc is called per run, not
// counting the final call.
const progressSteps = 100

type progress struct {
	fn    ProgressFunc
	total int
	step  int
	last  int
}

func newProgress(fn ProgressFunc, total int) *progress {
	step := max(1, (total+progressSteps-1)/progressSteps)
	return &progress{fn: fn, total: total, step: step}
}

func (p *progress) update(done int) {
	if p.fn == nil || p.total == 0 {
		return
	}
	if done == p.total || done-p.last >= p.step {
		p.last = done
		p.fn(done, p.total)
	}
}
