package tracker

import "github.com/user/webmonitor/pkg/beacon"

// SiteTokenAttribute is the attribute on the embedding tag that carries the
// site's monitoring code.
const SiteTokenAttribute = "data-site-id"

// NavigationTiming holds the two navigation-timing marks the agent needs,
// in milliseconds relative to the time origin.
type NavigationTiming struct {
	StartTime    float64
	LoadEventEnd float64
}

// ResourceTiming mirrors one PerformanceResourceTiming entry.
type ResourceTiming struct {
	Name          string
	InitiatorType string
	Duration      float64
	TransferSize  int64
}

// ThrownError is the error object attached to an uncaught error event.
type ThrownError struct {
	Name    string
	Message string
}

// ErrorEvent is an uncaught error. Error is nil for events that carry no error
// object, such as failed resource loads.
type ErrorEvent struct {
	Error    *ThrownError
	Filename string
	Line     int
}

// RejectionEvent is an unhandled promise rejection.
type RejectionEvent struct {
	Reason any
}

// Image is one image element of the host page.
type Image interface {
	// Src is the element's resolved source.
	Src() string
	Complete() bool
	NaturalSize() beacon.Size
	DisplaySize() beacon.Size
	// OnLoad registers fn to run once the image resource has loaded.
	OnLoad(fn func())
}

// Host is the page environment the agent is embedded in. Hosts may invoke
// callbacks from any goroutine.
type Host interface {
	URL() string
	// ScriptAttribute reads an attribute of the tag that embedded the agent.
	ScriptAttribute(name string) (string, bool)

	// OnLoad registers fn for the page's load event. Hosts whose page has
	// already loaded invoke fn promptly.
	OnLoad(fn func())
	NavigationTiming() (NavigationTiming, bool)
	ResourceTimings() []ResourceTiming

	OnError(fn func(ErrorEvent))
	OnUnhandledRejection(fn func(RejectionEvent))

	Console() *Console
	Images() []Image
}

// VisibilityObserver is implemented by hosts that can report when an image
// first intersects the viewport. When available, images are only checked once
// visible.
type VisibilityObserver interface {
	ObserveVisible(img Image, fn func())
}
