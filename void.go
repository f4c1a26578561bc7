package shard

// Void is the nullary result type. A Future[Void]/Promise[Void] pair
// stands in for "a future that only signals completion," with no
// value of its own to carry.
type Void struct{}
