package tracker

import (
	"sync"

	"github.com/user/webmonitor/pkg/beacon"
)

// LoadTimeRecorder captures navigation load time and resource timing on the
// first load event of the page lifetime.
type LoadTimeRecorder struct {
	env  *env
	host Host
	once sync.Once
}

func (r *LoadTimeRecorder) Install(h Host) {
	r.host = h
	h.OnLoad(func() {
		r.once.Do(func() {
			r.env.safe("loadtime", r.capture)
		})
	})
}

func (r *LoadTimeRecorder) capture() {
	var loadTime float64
	if nav, ok := r.host.NavigationTiming(); ok {
		loadTime = nav.LoadEventEnd - nav.StartTime
		if loadTime < 0 {
			loadTime = 0
		}
	}
	r.env.buf.RecordLoadTime(loadTime)

	timings := r.host.ResourceTimings()
	resources := make([]beacon.Resource, 0, len(timings))
	for _, t := range timings {
		resources = append(resources, beacon.Resource{
			Name:     t.Name,
			Type:     t.InitiatorType,
			Duration: t.Duration,
			Size:     t.TransferSize,
		})
	}
	r.env.buf.SetResources(resources)
	r.env.flush()
}
