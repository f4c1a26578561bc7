package coroutil

// noCopy is a type that prevents copying of values that embed it. It
// implements sync.Locker to provide a standard way to detect improper
// copying, the same trick sync.Mutex's own embedded noCopy field
// uses.
type noCopy struct{}

func (*noCopy) Lock() {}

func (*noCopy) Unlock() {}
