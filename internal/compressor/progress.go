package compressor

// progressReporter maps search steps onto 0..100. Values are clamped so the
// sequence seen by the callback never decreases, and 100 is only sent by finish.
type progressReporter struct {
	emit  ProgressFunc
	total int
	done  int
	last  int
}

func newProgressReporter(emit ProgressFunc, totalSteps int) *progressReporter {
	return &progressReporter{emit: emit, total: max(totalSteps, 1)}
}

func (p *progressReporter) start() {
	p.send(0)
}

func (p *progressReporter) step() {
	p.done++
	p.send(min(p.done*100/p.total, 99))
}

func (p *progressReporter) finish() {
	p.send(100)
}

func (p *progressReporter) send(percent int) {
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	if p.emit != nil {
		p.emit(percent)
	}
}
