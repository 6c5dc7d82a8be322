package recorder

// Observer receives session events. Calls come from worker goroutines and
// must not block; an observer must not call back into the session.
type Observer interface {
	StateChanged(worker int, s State)
	ClipSaved(s Saved)
	CycleFailed(worker int, err error)
}

// Observers fans events out to each element in order.
type Observers []Observer

func (o Observers) StateChanged(worker int, s State) {
	for _, ob := range o {
		ob.StateChanged(worker, s)
	}
}

func (o Observers) ClipSaved(s Saved) {
	for _, ob := range o {
		ob.ClipSaved(s)
	}
}

func (o Observers) CycleFailed(worker int, err error) {
	for _, ob := range o {
		ob.CycleFailed(worker, err)
	}
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState  func(worker int, s State)
	OnSaved  func(s Saved)
	OnFailed func(worker int, err error)
}

func (f ObserverFuncs) StateChanged(worker int, s State) {
	if f.OnState != nil {
		f.OnState(worker, s)
	}
}

func (f ObserverFuncs) ClipSaved(s Saved) {
	if f.OnSaved != nil {
		f.OnSaved(s)
	}
}

func (f ObserverFuncs) CycleFailed(worker int, err error) {
	if f.OnFailed != nil {
		f.OnFailed(worker, err)
	}
}
