package pipeline

import (
	"path/filepath"

	"github.com/couchcryptid/era5-sounding/internal/domain"
)

// PlannedRequest pairs an archive request with the file it is written to.
type PlannedRequest struct {
	Event   domain.Event
	Sample  int // 0 for the event's own point, 1..n for control points
	Request domain.Request
	Target  string
}

// PointRequests plans the point stage: for every event in catalog order, one
// request at the event's coordinates followed by perEvent requests at points
// drawn from sampler.
func PointRequests(events []domain.Event, sampler *domain.Sampler, perEvent int, dir string) []PlannedRequest {
	out := make([]PlannedRequest, 0, len(events)*(perEvent+1))
	for _, ev := range events {
		out = append(out, PlannedRequest{
			Event:   ev,
			Request: domain.NewPointRequest(ev.Time, ev.Lat, ev.Lon),
			Target:  filepath.Join(dir, domain.PointFileName(ev.Index, ev.RawTime)),
		})
		for k := 1; k <= perEvent; k++ {
			lat, lon := sampler.Point()
			out = append(out, PlannedRequest{
				Event:   ev,
				Sample:  k,
				Request: domain.NewPointRequest(ev.Time, lat, lon),
				Target:  filepath.Join(dir, domain.RandomFileName(ev.Index, k, ev.RawTime)),
			})
		}
	}
	return out
}

// GridRequests plans the grid stage: one request over box per event, named by
// the event timestamp. Events sharing a timestamp share a target.
func GridRequests(events []domain.Event, box domain.BoundingBox, dir string) []PlannedRequest {
	out := make([]PlannedRequest, 0, len(events))
	for _, ev := range events {
		out = append(out, PlannedRequest{
			Event:   ev,
			Request: domain.NewRequest(ev.Time, box),
			Target:  filepath.Join(dir, domain.GridFileName(ev.RawTime)),
		})
	}
	return out
}
