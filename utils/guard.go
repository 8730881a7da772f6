package utils

// Guard runs a cleanup function when a constructor returns early with an error, and skips it once
// the constructor declares success. Usage:
//
//	guard := NewGuard(func() { pipeline.Stop() })
//	defer guard.OnFail()
//	if err != nil { return err }
//	guard.Success()
//	return nil
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a Guard that calls onFailCleanup from OnFail unless Success was called.
func NewGuard(onFailCleanup func()) *Guard {
	ret := &Guard{}
	ret.OnFail = func() {
		if !ret.success {
			onFailCleanup()
		}
	}
	return ret
}

// Success declares the function succeeded and the failure cleanup does not need to run.
func (guard *Guard) Success() {
	guard.success = true
}
