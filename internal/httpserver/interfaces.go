package httpserver

// watchState is the view of the watch loop the probes need.
type watchState interface {
	Healthy() bool
	Ready() bool
}
