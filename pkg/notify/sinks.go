package notify

// Side-effect sinks. Each is optional and independent: a failure in one
// (permission denied, audio blocked) never prevents the others from
// running or the notification from being recorded.

// ToastSink renders a transient UI toast.
type ToastSink interface {
	Show(n Notification) error
}

// DesktopSink renders an OS-level notification. Permission is requested
// once when the manager is constructed and never re-requested.
type DesktopSink interface {
	RequestPermission() (bool, error)
	Show(n Notification) error
}

// SoundSink plays an alert sound keyed by notification kind.
type SoundSink interface {
	Play(kind Kind) error
}

// Sinks bundles the side-effect targets given to a Manager. Nil fields
// disable the corresponding effect.
type Sinks struct {
	Toast   ToastSink
	Desktop DesktopSink
	Sound   SoundSink
}
